package vb

// SourceKind identifies which history an identifier belongs to.
type SourceKind int

const (
	// SourceSnapshot is a restic snapshot id (or a name like "latest").
	SourceSnapshot SourceKind = iota
	// SourceGit is a commit hash.
	SourceGit
	// SourceAmbiguous is an 8 hex character id that could be either.
	SourceAmbiguous
)

// String returns a label used in logs and HTTP responses.
func (k SourceKind) String() string {
	switch k {
	case SourceGit:
		return "git"
	case SourceSnapshot:
		return "snapshot"
	case SourceAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// ClassifySource infers the origin of a user-supplied identifier.
//
//   - 40 hex chars: full commit hash
//   - 8 hex chars: short commit hash or short snapshot id
//   - 7 to 40 hex chars otherwise: abbreviated commit hash
//   - anything else: snapshot
//
// Only lowercase hex counts, matching what git and restic print.
func ClassifySource(id string) SourceKind {
	if !isLowerHex(id) {
		return SourceSnapshot
	}
	switch n := len(id); {
	case n == 40:
		return SourceGit
	case n == 8:
		return SourceAmbiguous
	case n >= 7 && n < 40:
		return SourceGit
	default:
		return SourceSnapshot
	}
}

func isLowerHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
