/*
 * Copyright 2025 The Pigeon Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package peers provides the connection bridge and the per-connection
// transports used by the replication protocol. The process that owns the
// actual peer-connection library lives on the far side of a message channel;
// the bridge drives it with correlation-tagged messages and never touches
// connection objects directly.
package peers

// MessageType is the kind of a bridge message.
type MessageType string

// Below are the outbound message kinds sent by the bridge.
const (
	MsgGetPeerID MessageType = "getPeerId"
	MsgConnect   MessageType = "connect"
	MsgSendData  MessageType = "sendData"
	MsgCloseConn MessageType = "closeConn"
)

// Below are the inbound event kinds delivered to the bridge.
const (
	MsgPeerOpened        MessageType = "peerOpened"
	MsgPeerClosed        MessageType = "peerClosed"
	MsgConnOpened        MessageType = "connOpened"
	MsgConnData          MessageType = "connData"
	MsgConnClosed        MessageType = "connClosed"
	MsgIncomingConnected MessageType = "incomingConnected"
)

// Message is a correlation-tagged message crossing the bridge channel. The
// meaning of each field depends on the message type; unused fields are left
// empty.
type Message struct {
	Type MessageType `json:"type"`

	// PeerID is the local peer id of the connection owner.
	PeerID string `json:"peerId,omitempty"`

	// RemotePeerID is the peer id of the other end.
	RemotePeerID string `json:"remotePeerId,omitempty"`

	// ConnectionID identifies one established connection.
	ConnectionID string `json:"connectionId,omitempty"`

	// TransportID is the correlation id minted by Connect and echoed back by
	// the matching connOpened event.
	TransportID string `json:"transportId,omitempty"`

	// Data is the byte chunk of sendData and connData messages.
	Data []byte `json:"data,omitempty"`
}
