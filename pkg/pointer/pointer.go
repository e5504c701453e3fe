package pointer

import "time"

// Of returns a pointer to the provided value
func Of[T any](value T) *T {
	return &value
}

// IfValid returns a pointer to the value if it's valid, otherwise nil
func IfValid[T any](valid bool, value T) *T {
	if valid {
		return &value
	}
	return nil
}

// Copy returns a pointer that's a copy of the provided value
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return Of(*value)
}

// ValueOrDefault dereferences the pointer if not nil, otherwise returns the
// default value
func ValueOrDefault[T any](value *T, defaultValue T) T {
	if value != nil {
		return *value
	}
	return defaultValue
}

// String returns a pointer to the provided string value
func String(value string) *string {
	return &value
}

// StringIfValid returns a pointer to the value if it's valid, otherwise nil
func StringIfValid(valid bool, value string) *string {
	return IfValid(valid, value)
}

// StringCopy returns a pointer that's a copy of the provided value
func StringCopy(value *string) *string {
	return Copy(value)
}

// Time returns a pointer to the provided time.Time value
func Time(value time.Time) *time.Time {
	return &value
}

// TimeIfValid returns a pointer to the value if it's valid, otherwise nil
func TimeIfValid(valid bool, value time.Time) *time.Time {
	return IfValid(valid, value)
}

// TimeCopy returns a pointer that's a copy of the provided value
func TimeCopy(value *time.Time) *time.Time {
	return Copy(value)
}
