// pkg/xdg/types.go

package xdg

const (
	DirPermStandard = 0755
)
