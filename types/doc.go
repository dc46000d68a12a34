// Package types provides core types shared across the parley runtime.
// This package has ZERO dependencies on other parley packages to avoid
// circular imports. All other packages should import types from here.
package types
