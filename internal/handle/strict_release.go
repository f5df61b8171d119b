//go:build !procview_debug

package handle

const strict = false
