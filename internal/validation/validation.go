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

// Package validation provides validation functions for user-provided fields
// and configuration structs.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// slugRegexString is referenced from the unreserved characters of RFC 3986.
const slugRegexString = `^[a-z0-9\-._~]+$`

var slugRegex = regexp.MustCompile(slugRegexString)

var (
	// defaultValidator is the validation instance used by this package. Some
	// fields are provided by the user and need to be validated.
	defaultValidator = validator.New()

	// defaultEn is the default translator instance for the 'en' locale.
	defaultEn = en.New()

	// uni is the UniversalTranslator instance set with the fallback locale.
	uni = ut.New(defaultEn, defaultEn)

	// trans is the translator for the 'en' locale.
	trans, _ = uni.GetTranslator(defaultEn.Locale())
)

// FormError is a validation error with the list of violated fields.
type FormError struct {
	Violations []Violation
}

// Violation is a single violated field with its translated message.
type Violation struct {
	Tag         string
	Field       string
	Description string
}

// Error returns the error message.
func (e *FormError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid fields"
	}
	return fmt.Sprintf("invalid fields: %s", e.Violations[0].Description)
}

// Validate validates the given struct and returns a FormError when any field
// violates its constraints.
func Validate(value interface{}) error {
	if err := defaultValidator.Struct(value); err != nil {
		var invalidErr *validator.InvalidValidationError
		if errors.As(err, &invalidErr) {
			return fmt.Errorf("validate: %w", err)
		}

		formErr := &FormError{}
		for _, fieldErr := range err.(validator.ValidationErrors) {
			formErr.Violations = append(formErr.Violations, Violation{
				Tag:         fieldErr.Tag(),
				Field:       fieldErr.Field(),
				Description: fieldErr.Translate(trans),
			})
		}
		return formErr
	}

	return nil
}

// registerValidation registers a custom validation rule.
func registerValidation(tag string, fn validator.Func) {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %s", tag, err))
	}
}

// registerTranslation registers the message of a custom validation rule.
func registerTranslation(tag, msg string) {
	if err := defaultValidator.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, msg, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, err := ut.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return t
		},
	); err != nil {
		panic(fmt.Sprintf("register translation %q: %s", tag, err))
	}
}

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		panic(fmt.Sprintf("register default translations: %s", err))
	}

	registerValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
	registerTranslation("slug", "{0} must only contain lowercase letters, numbers, hyphen, period, underscore, and tilde")
}
