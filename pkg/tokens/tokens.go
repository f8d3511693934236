package tokens

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errTokenMalformed = errors.New("token malformed")
	errTokenInvalid   = errors.New("token invalid")
)

func ErrTokenMalformed() error { return errTokenMalformed }
func ErrTokenInvalid() error   { return errTokenInvalid }

type parseError struct {
	context string
	err     error
}

func (e *parseError) Context() string { return e.context }
func (e *parseError) Error() string   { return fmt.Sprintf("%v: %s", e.err, e.context) }
func (e *parseError) Unwrap() error   { return e.err }

func malformed(format string, v ...any) *parseError {
	return &parseError{
		context: fmt.Sprintf(format, v...),
		err:     errTokenMalformed,
	}
}

func validateStructure(tokenStr string) (
	header string,
	payload string,
	signature string,
	err error,
) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		err = fmt.Errorf("JWT expected three parts, found %d", len(parts))
		return
	}
	header = parts[0]
	payload = parts[1]
	signature = parts[2]
	return
}

// decodeSegment accepts both the raw URL-safe alphabet used by JWTs and
// padded or standard-alphabet variants some issuers emit.
func decodeSegment(segment string) ([]byte, error) {
	std := strings.NewReplacer("-", "+", "_", "/").Replace(segment)
	if rem := len(std) % 4; rem != 0 {
		std += strings.Repeat("=", 4-rem)
	}
	bytes, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %v", err)
	}
	return bytes, nil
}

func decodeJWTSection[T any](str string, value *T) error {
	bytes, err := decodeSegment(str)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(bytes, value); err != nil {
		return fmt.Errorf("not valid JSON: %v", err)
	}
	return nil
}
