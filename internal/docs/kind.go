package docs

// EntityKind is the kind of a documented item, as encoded by rustdoc's
// numeric item type in the search index.
type EntityKind uint8

const (
	KindModule EntityKind = iota
	KindExternCrate
	KindImport
	KindStruct
	KindEnum
	KindFunction
	KindTypeAlias
	KindStatic
	KindTrait
	KindImpl
	KindTyMethod
	KindMethod
	KindStructField
	KindVariant
	KindMacro
	KindPrimitive
	KindAssocType
	KindConstant
	KindAssocConst
	KindUnion
	KindForeignType
	KindKeyword
	KindExistential
	KindAttributeMacro
	KindDeriveMacro
	KindTraitAlias

	// KindUnknown is used for codes newer than this table.
	KindUnknown EntityKind = 255
)

// kindNames mirrors rustdoc's itemTypes table; the index is the numeric code.
var kindNames = [...]string{
	KindModule:         "mod",
	KindExternCrate:    "externcrate",
	KindImport:         "import",
	KindStruct:         "struct",
	KindEnum:           "enum",
	KindFunction:       "fn",
	KindTypeAlias:      "type",
	KindStatic:         "static",
	KindTrait:          "trait",
	KindImpl:           "impl",
	KindTyMethod:       "tymethod",
	KindMethod:         "method",
	KindStructField:    "structfield",
	KindVariant:        "variant",
	KindMacro:          "macro",
	KindPrimitive:      "primitive",
	KindAssocType:      "associatedtype",
	KindConstant:       "constant",
	KindAssocConst:     "associatedconstant",
	KindUnion:          "union",
	KindForeignType:    "foreigntype",
	KindKeyword:        "keyword",
	KindExistential:    "existential",
	KindAttributeMacro: "attr",
	KindDeriveMacro:    "derive",
	KindTraitAlias:     "traitalias",
}

// KindFromCode maps a search-index type code to its kind. Codes outside the
// known table map to KindUnknown rather than failing.
func KindFromCode(code uint32) EntityKind {
	if code < uint32(len(kindNames)) {
		return EntityKind(code)
	}
	return KindUnknown
}

// ParseKind looks a kind up by its rustdoc name ("fn", "struct", ...).
func ParseKind(name string) (EntityKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return EntityKind(i), true
		}
	}
	if name == "unknown" {
		return KindUnknown, true
	}
	return 0, false
}

func (k EntityKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}
