// Package store implements the type-tagged persistent build state (spec
// §4.8): a 64-bit key encodes a type-id in the high 8 bits and a
// monotonically assigned id in the low 56 bits, backed by one SQLite table
// per type for cache-local bulk retrieval.
package store

// TypeID identifies one persisted object kind. Each node variant and the
// repository registry get a distinct type-id (spec §4.8).
type TypeID uint8

const (
	TypeSourceFile TypeID = iota + 1
	TypeSourceDir
	TypeDotIgnore
	TypeGeneratedFile
	TypeCommand
	TypeGroup
	TypeBuildFileParser
	TypeBuildFileCompiler
	TypeRepository
)

func (t TypeID) String() string {
	switch t {
	case TypeSourceFile:
		return "SourceFile"
	case TypeSourceDir:
		return "SourceDir"
	case TypeDotIgnore:
		return "DotIgnore"
	case TypeGeneratedFile:
		return "GeneratedFile"
	case TypeCommand:
		return "Command"
	case TypeGroup:
		return "Group"
	case TypeBuildFileParser:
		return "BuildFileParser"
	case TypeBuildFileCompiler:
		return "BuildFileCompiler"
	case TypeRepository:
		return "Repository"
	default:
		return "Unknown"
	}
}

// tableName returns the per-type SQLite table name. One tree per type, as
// spec §4.8 requires, so bulk retrieve iterates in type × id order.
func (t TypeID) tableName() string {
	switch t {
	case TypeSourceFile:
		return "obj_source_file"
	case TypeSourceDir:
		return "obj_source_dir"
	case TypeDotIgnore:
		return "obj_dot_ignore"
	case TypeGeneratedFile:
		return "obj_generated_file"
	case TypeCommand:
		return "obj_command"
	case TypeGroup:
		return "obj_group"
	case TypeBuildFileParser:
		return "obj_buildfile_parser"
	case TypeBuildFileCompiler:
		return "obj_buildfile_compiler"
	case TypeRepository:
		return "obj_repository"
	default:
		return "obj_unknown"
	}
}

const (
	typeShift  = 56
	idMask     = (uint64(1) << typeShift) - 1
	maxID      = idMask
)

// Key is the 64-bit (type-id, id) persistence key.
type Key uint64

// NewKey packs a type-id and a monotonic id into one key.
func NewKey(t TypeID, id uint64) Key {
	return Key(uint64(t)<<typeShift | (id & idMask))
}

// Type extracts the high-8-bit type-id.
func (k Key) Type() TypeID { return TypeID(uint64(k) >> typeShift) }

// ID extracts the low-56-bit monotonic id.
func (k Key) ID() uint64 { return uint64(k) & idMask }

// AllTypes lists every type-id in persistence order, used to create tables
// and to drive retrieve()'s per-type scan.
func AllTypes() []TypeID {
	return []TypeID{
		TypeSourceFile, TypeSourceDir, TypeDotIgnore, TypeGeneratedFile,
		TypeCommand, TypeGroup, TypeBuildFileParser, TypeBuildFileCompiler,
		TypeRepository,
	}
}
