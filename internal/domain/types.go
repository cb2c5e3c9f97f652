package domain

type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindSpecial
	// KindBusy is a directory whose subtree is still being read.
	KindBusy
	KindExcluded
	KindError
)

func (kind Kind) String() string {
	switch kind {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindSpecial:
		return "special"
	case KindBusy:
		return "busy"
	case KindExcluded:
		return "excluded"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// IsDirLike reports whether entries of this kind may own children.
func (kind Kind) IsDirLike() bool {
	return kind == KindDir || kind == KindBusy
}

// IsPlaceholder reports whether the kind stands in for a path that was not read.
func (kind Kind) IsPlaceholder() bool {
	return kind == KindExcluded || kind == KindError
}

type SortMode string

const (
	SortBySize SortMode = "size"
	SortByName SortMode = "name"
	SortByMod  SortMode = "mod"
)
