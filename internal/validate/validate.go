// Package validate holds the pure field checks applied to user input before any
// external tool is spawned.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/c2h5oh/datasize"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
)

// Rule names the constraint a field violated.
type Rule string

const (
	RuleInvalidFormat        Rule = "InvalidFormat"
	RuleOutOfRange           Rule = "OutOfRange"
	RuleRequired             Rule = "Required"
	RuleNotFound             Rule = "NotFound"
	RuleUnsupportedExtension Rule = "UnsupportedExtension"
)

// ForbiddenChars is the set of characters rejected in VM names.
const ForbiddenChars = "!@#$%^&*()-_+=~`[{]}\\|;:\"'<,>./?"

// Error reports the field and rule behind a rejected value.
type Error struct {
	Field  string
	Rule   Rule
	Value  string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Detail)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Rule)
}

var sizePattern = regexp.MustCompile(`^[0-9]+[KMGT]$`)

// Size parses text such as "10G". The count must be positive.
func Size(text string) (models.Size, error) {
	if !sizePattern.MatchString(text) {
		return models.Size{}, &Error{
			Field:  "size",
			Rule:   RuleInvalidFormat,
			Value:  text,
			Detail: "use a whole number followed by K, M, G or T (e.g. 10G, 500M)",
		}
	}
	count, err := strconv.ParseUint(text[:len(text)-1], 10, 64)
	if err != nil || count == 0 {
		return models.Size{}, &Error{
			Field:  "size",
			Rule:   RuleInvalidFormat,
			Value:  text,
			Detail: "size must be a positive whole number",
		}
	}
	return models.Size{Count: count, Unit: models.SizeUnit(text[len(text)-1])}, nil
}

// Bytes converts a validated size to bytes using 1024 multiples.
func Bytes(size models.Size) (uint64, error) {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(size.String())); err != nil {
		return 0, &Error{Field: "size", Rule: RuleOutOfRange, Value: size.String(), Detail: err.Error()}
	}
	return v.Bytes(), nil
}

// Identifier checks a name: non-empty, no leading digit, none of forbidden.
func Identifier(field, text, forbidden string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &Error{Field: field, Rule: RuleRequired, Value: text, Detail: field + " is required"}
	}
	first := []rune(text)[0]
	if unicode.IsDigit(first) {
		return "", &Error{Field: field, Rule: RuleInvalidFormat, Value: text, Detail: field + " cannot start with a number"}
	}
	if i := strings.IndexAny(text, forbidden); i >= 0 {
		return "", &Error{
			Field:  field,
			Rule:   RuleInvalidFormat,
			Value:  text,
			Detail: fmt.Sprintf("%s cannot contain special characters like %q", field, text[i]),
		}
	}
	return text, nil
}

// Range checks lo <= value <= hi.
func Range(field string, value, lo, hi int) (int, error) {
	if value < lo || value > hi {
		return 0, &Error{
			Field:  field,
			Rule:   RuleOutOfRange,
			Value:  strconv.Itoa(value),
			Detail: fmt.Sprintf("%s must be between %d and %d", field, lo, hi),
		}
	}
	return value, nil
}

// NonEmpty rejects blank values.
func NonEmpty(field, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &Error{Field: field, Rule: RuleRequired, Value: text, Detail: field + " is required"}
	}
	return strings.TrimSpace(text), nil
}

// ExistingFile requires path to name a regular file.
func ExistingFile(field, path string) (string, error) {
	path, err := NonEmpty(field, path)
	if err != nil {
		return "", err
	}
	info, statErr := os.Stat(path)
	if statErr != nil || info.IsDir() {
		return "", &Error{Field: field, Rule: RuleNotFound, Value: path, Detail: field + " must be an existing file"}
	}
	return path, nil
}

// DiskFormat parses a format name.
func DiskFormat(text string) (models.DiskFormat, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, f := range models.DiskFormats {
		if string(f) == lower {
			return f, nil
		}
	}
	return "", &Error{Field: "format", Rule: RuleInvalidFormat, Value: text, Detail: "allowed: " + formatList()}
}

// DiskExtension requires path to carry a supported disk format extension.
func DiskExtension(field, path string) (models.DiskFormat, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, f := range models.DiskFormats {
		if string(f) == ext {
			return f, nil
		}
	}
	return "", &Error{
		Field:  field,
		Rule:   RuleUnsupportedExtension,
		Value:  path,
		Detail: "invalid disk format, allowed: " + formatList(),
	}
}

// Allocation parses Dynamic or Fixed; empty means Dynamic.
func Allocation(text string) (models.Allocation, error) {
	switch {
	case text == "", strings.EqualFold(text, string(models.AllocationDynamic)):
		return models.AllocationDynamic, nil
	case strings.EqualFold(text, string(models.AllocationFixed)):
		return models.AllocationFixed, nil
	}
	return "", &Error{Field: "allocation", Rule: RuleInvalidFormat, Value: text, Detail: "allowed: Dynamic, Fixed"}
}

func formatList() string {
	names := make([]string, 0, len(models.DiskFormats))
	for _, f := range models.DiskFormats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
