// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package pointers

// SafeInt returns the value from ptr or 0 if the pointer is nil
func SafeInt(ptr *int) int {
	if ptr != nil {
		return *ptr
	}
	return 0
}

// SafeString returns the value from ptr or "" if the pointer is nil
func SafeString(ptr *string) string {
	if ptr != nil {
		return *ptr
	}
	return ""
}

// IntPtr returns a pointer to the passed int
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to the passed string
func StringPtr(v string) *string {
	return &v
}
