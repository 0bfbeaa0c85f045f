package compat

import (
	"fmt"
	"strings"
)

// DefaultType is assumed when a type string is absent.
const DefaultType = "File"

// TypeInfo is the parsed form of a CWL type string.
type TypeInfo struct {
	Base       string `json:"base"`
	IsArray    bool   `json:"is_array"`
	IsNullable bool   `json:"is_nullable"`
}

// Result is the outcome of a compatibility check. Compatible with Warning set
// means the connection is allowed but suspect.
type Result struct {
	Compatible bool   `json:"compatible"`
	Warning    bool   `json:"warning,omitempty"`
	Reason     string `json:"reason,omitempty"`
	// ExtensionMismatch marks an incompatibility decided by file extensions.
	ExtensionMismatch bool `json:"extension_mismatch,omitempty"`
	// ExtensionWarning marks a warning produced by file extensions.
	ExtensionWarning bool `json:"extension_warning,omitempty"`
}

var typeModifiers = strings.NewReplacer("?", "", "[", "", "]", "")

// ClassifyType parses a type string such as "File", "File[]" or "int?".
// An empty string is a plain File.
func ClassifyType(s string) TypeInfo {
	if s == "" {
		return TypeInfo{Base: DefaultType}
	}
	base := typeModifiers.Replace(s)
	if base == "" {
		base = DefaultType
	}
	return TypeInfo{
		Base:       base,
		IsArray:    strings.Contains(s, "[]"),
		IsNullable: strings.HasSuffix(s, "?"),
	}
}

// CheckTypeCompatibility decides whether an output of outType may feed an input
// of inType. Extension lists are consulted only for File connections and only
// when at least one of them is non-nil; an empty non-nil list still counts as
// "extension information present".
func CheckTypeCompatibility(outType, inType string, outExts, inExts []string) Result {
	if outType == "" || inType == "" {
		return Result{Compatible: true}
	}

	out := ClassifyType(outType)
	in := ClassifyType(inType)

	if out.IsArray != in.IsArray {
		return Result{Reason: fmt.Sprintf("Array mismatch: %s → %s", outType, inType)}
	}
	if out.Base != in.Base {
		return Result{Reason: fmt.Sprintf("Type mismatch: %s → %s", outType, inType)}
	}

	if out.Base == DefaultType && (outExts != nil || inExts != nil) {
		ext := CheckExtensionCompatibility(outExts, inExts)
		if !ext.Compatible {
			return Result{Reason: ext.Reason, ExtensionMismatch: true}
		}
		if ext.Warning {
			return Result{Compatible: true, Warning: true, Reason: ext.Reason, ExtensionWarning: true}
		}
	}

	return Result{Compatible: true}
}
