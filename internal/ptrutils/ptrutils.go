package ptrutils

func ToPtr[T any](val T) *T {
	return &val
}

func ValueOrDefault[T any](ptr *T, defaultValue T) T {
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}
