// Enum helpers for config/enums.go, written in the form go-enum produces.
// Keep in sync with the type declarations there.

package config

import (
	"errors"
	"fmt"
)

const (
	// FailurePolicySkip is a FailurePolicy of type Skip.
	FailurePolicySkip FailurePolicy = iota
	// FailurePolicyAbort is a FailurePolicy of type Abort.
	FailurePolicyAbort
)

var ErrInvalidFailurePolicy = errors.New("not a valid FailurePolicy")

const _FailurePolicyName = "skipabort"

var _FailurePolicyNames = []string{
	_FailurePolicyName[0:4],
	_FailurePolicyName[4:9],
}

// FailurePolicyNames returns a list of possible string values of FailurePolicy.
func FailurePolicyNames() []string {
	tmp := make([]string, len(_FailurePolicyNames))
	copy(tmp, _FailurePolicyNames)
	return tmp
}

// FailurePolicyValues returns a list of the values for FailurePolicy
func FailurePolicyValues() []FailurePolicy {
	return []FailurePolicy{
		FailurePolicySkip,
		FailurePolicyAbort,
	}
}

var _FailurePolicyMap = map[FailurePolicy]string{
	FailurePolicySkip:  _FailurePolicyName[0:4],
	FailurePolicyAbort: _FailurePolicyName[4:9],
}

// String implements the Stringer interface.
func (x FailurePolicy) String() string {
	if str, ok := _FailurePolicyMap[x]; ok {
		return str
	}
	return fmt.Sprintf("FailurePolicy(%d)", x)
}

// IsValid provides a quick way to determine if the typed value is
// part of the allowed enumerated values
func (x FailurePolicy) IsValid() bool {
	_, ok := _FailurePolicyMap[x]
	return ok
}

var _FailurePolicyValue = map[string]FailurePolicy{
	_FailurePolicyName[0:4]: FailurePolicySkip,
	_FailurePolicyName[4:9]: FailurePolicyAbort,
}

// ParseFailurePolicy attempts to convert a string to a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	if x, ok := _FailurePolicyValue[name]; ok {
		return x, nil
	}
	return FailurePolicy(0), fmt.Errorf("%s is %w", name, ErrInvalidFailurePolicy)
}

// MarshalText implements the text marshaller method.
func (x FailurePolicy) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *FailurePolicy) UnmarshalText(text []byte) error {
	name := string(text)
	tmp, err := ParseFailurePolicy(name)
	if err != nil {
		return err
	}
	*x = tmp
	return nil
}

const (
	// FallbackModeNone is a FallbackMode of type None.
	FallbackModeNone FallbackMode = iota
	// FallbackModeOriginal is a FallbackMode of type Original.
	FallbackModeOriginal
	// FallbackModeOverride is a FallbackMode of type Override.
	FallbackModeOverride
)

var ErrInvalidFallbackMode = errors.New("not a valid FallbackMode")

const _FallbackModeName = "noneoriginaloverride"

var _FallbackModeNames = []string{
	_FallbackModeName[0:4],
	_FallbackModeName[4:12],
	_FallbackModeName[12:20],
}

// FallbackModeNames returns a list of possible string values of FallbackMode.
func FallbackModeNames() []string {
	tmp := make([]string, len(_FallbackModeNames))
	copy(tmp, _FallbackModeNames)
	return tmp
}

// FallbackModeValues returns a list of the values for FallbackMode
func FallbackModeValues() []FallbackMode {
	return []FallbackMode{
		FallbackModeNone,
		FallbackModeOriginal,
		FallbackModeOverride,
	}
}

var _FallbackModeMap = map[FallbackMode]string{
	FallbackModeNone:     _FallbackModeName[0:4],
	FallbackModeOriginal: _FallbackModeName[4:12],
	FallbackModeOverride: _FallbackModeName[12:20],
}

// String implements the Stringer interface.
func (x FallbackMode) String() string {
	if str, ok := _FallbackModeMap[x]; ok {
		return str
	}
	return fmt.Sprintf("FallbackMode(%d)", x)
}

// IsValid provides a quick way to determine if the typed value is
// part of the allowed enumerated values
func (x FallbackMode) IsValid() bool {
	_, ok := _FallbackModeMap[x]
	return ok
}

var _FallbackModeValue = map[string]FallbackMode{
	_FallbackModeName[0:4]:   FallbackModeNone,
	_FallbackModeName[4:12]:  FallbackModeOriginal,
	_FallbackModeName[12:20]: FallbackModeOverride,
}

// ParseFallbackMode attempts to convert a string to a FallbackMode.
func ParseFallbackMode(name string) (FallbackMode, error) {
	if x, ok := _FallbackModeValue[name]; ok {
		return x, nil
	}
	return FallbackMode(0), fmt.Errorf("%s is %w", name, ErrInvalidFallbackMode)
}

// MarshalText implements the text marshaller method.
func (x FallbackMode) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *FallbackMode) UnmarshalText(text []byte) error {
	name := string(text)
	tmp, err := ParseFallbackMode(name)
	if err != nil {
		return err
	}
	*x = tmp
	return nil
}

const (
	// ScanModeHead is a ScanMode of type Head.
	ScanModeHead ScanMode = iota
	// ScanModeScoped is a ScanMode of type Scoped.
	ScanModeScoped
)

var ErrInvalidScanMode = errors.New("not a valid ScanMode")

const _ScanModeName = "headscoped"

var _ScanModeNames = []string{
	_ScanModeName[0:4],
	_ScanModeName[4:10],
}

// ScanModeNames returns a list of possible string values of ScanMode.
func ScanModeNames() []string {
	tmp := make([]string, len(_ScanModeNames))
	copy(tmp, _ScanModeNames)
	return tmp
}

// ScanModeValues returns a list of the values for ScanMode
func ScanModeValues() []ScanMode {
	return []ScanMode{
		ScanModeHead,
		ScanModeScoped,
	}
}

var _ScanModeMap = map[ScanMode]string{
	ScanModeHead:   _ScanModeName[0:4],
	ScanModeScoped: _ScanModeName[4:10],
}

// String implements the Stringer interface.
func (x ScanMode) String() string {
	if str, ok := _ScanModeMap[x]; ok {
		return str
	}
	return fmt.Sprintf("ScanMode(%d)", x)
}

// IsValid provides a quick way to determine if the typed value is
// part of the allowed enumerated values
func (x ScanMode) IsValid() bool {
	_, ok := _ScanModeMap[x]
	return ok
}

var _ScanModeValue = map[string]ScanMode{
	_ScanModeName[0:4]:  ScanModeHead,
	_ScanModeName[4:10]: ScanModeScoped,
}

// ParseScanMode attempts to convert a string to a ScanMode.
func ParseScanMode(name string) (ScanMode, error) {
	if x, ok := _ScanModeValue[name]; ok {
		return x, nil
	}
	return ScanMode(0), fmt.Errorf("%s is %w", name, ErrInvalidScanMode)
}

// MarshalText implements the text marshaller method.
func (x ScanMode) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (x *ScanMode) UnmarshalText(text []byte) error {
	name := string(text)
	tmp, err := ParseScanMode(name)
	if err != nil {
		return err
	}
	*x = tmp
	return nil
}
