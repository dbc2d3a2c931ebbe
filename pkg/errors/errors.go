// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Videx Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeIndexDimensionMismatch Code = "index.vector.dimension_mismatch"
	CodeIndexDatabaseFailure   Code = "index.vector.database_failure"

	CodeStorePersistFailure  Code = "store.exemplar.persist.failure"
	CodeStoreDatabaseFailure Code = "store.database.failure"
	CodeStoreInvalidInput    Code = "store.invalid_input"

	CodeStyleInvalidWeights  Code = "style.score.invalid_weights"
	CodeStylePersistFailure  Code = "style.state.persist.failure"
	CodeStyleDatabaseFailure Code = "style.state.database_failure"

	CodeProviderEmbeddingFailure  Code = "provider.embedding.failure"
	CodeProviderGenerationFailure Code = "provider.generation.failure"
	CodeProviderNotFound          Code = "provider.registry.not_found"
	CodeProviderConfigInvalid     Code = "provider.config.invalid_value"

	CodeSuggestParseFailure Code = "suggest.response.parse.failure"
	CodeSuggestInvalidInput Code = "suggest.request.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.uri.invalid_input"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretNotFound       Code = "secret.key.not_found"

	CodeServerRequestInvalid  Code = "server.request.invalid_input"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLISetupFailure   Code = "cli.setup.failure"
	CodeCLIRequestFailure Code = "cli.request.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldExemplarID(value int64) Attr {
	return Field("exemplar_id", value)
}

func FieldLabel(value string) Attr {
	return Field("label", value)
}

func FieldAnnotatorID(value string) Attr {
	return Field("annotator_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsDimensionMismatch reports whether err is a vector dimension violation.
func IsDimensionMismatch(err error) bool {
	return HasCode(err, CodeIndexDimensionMismatch)
}

// IsPersistenceFailure reports whether a durable write failed, meaning the
// in-memory state must not be considered committed.
func IsPersistenceFailure(err error) bool {
	code := CodeOf(err)
	return code == CodeStorePersistFailure || code == CodeStylePersistFailure
}

// IsEmbeddingFailure reports whether the external embedding function failed.
func IsEmbeddingFailure(err error) bool {
	return HasCode(err, CodeProviderEmbeddingFailure)
}

// IsGenerationFailure reports whether the external generation service failed.
func IsGenerationFailure(err error) bool {
	return HasCode(err, CodeProviderGenerationFailure)
}

// IsParseFailure reports whether generation output could not be parsed. This
// condition is recovered locally as an empty suggestion list and should never
// surface as a request failure.
func IsParseFailure(err error) bool {
	return HasCode(err, CodeSuggestParseFailure)
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_weights" || r == "dimension_mismatch"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.HasPrefix(string(code), "provider.") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
