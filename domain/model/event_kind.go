package model

import (
	"encoding/json"
	"fmt"
)

// KindType is the top level of the event classification tree.
type KindType uint8

const (
	TypeAny KindType = iota
	TypeAccess
	TypeCreate
	TypeModify
	TypeRemove
	TypeOther
)

// AccessKind refines TypeAccess.
type AccessKind uint8

const (
	AccessAny AccessKind = iota
	AccessRead
	AccessOpen
	AccessClose
)

// ObjectKind refines TypeCreate and TypeRemove.
type ObjectKind uint8

const (
	ObjectAny ObjectKind = iota
	ObjectFile
	ObjectFolder
	ObjectOther
)

// ModifyType refines TypeModify.
type ModifyType uint8

const (
	ModifyAny ModifyType = iota
	ModifyData
	ModifyMetadata
	ModifyName
	ModifyOther
)

// RenameMode refines ModifyName.
type RenameMode uint8

const (
	RenameAny RenameMode = iota
	RenameTo
	RenameFrom
	RenameBoth
)

var (
	kindTypeNames   = []string{"any", "access", "create", "modify", "remove", "other"}
	accessKindNames = []string{"any", "read", "open", "close"}
	objectKindNames = []string{"any", "file", "folder", "other"}
	modifyTypeNames = []string{"any", "data", "metadata", "name", "other"}
	renameModeNames = []string{"any", "to", "from", "both"}
)

func (k KindType) String() string   { return enumName(kindTypeNames, k) }
func (k AccessKind) String() string { return enumName(accessKindNames, k) }
func (k ObjectKind) String() string { return enumName(objectKindNames, k) }
func (k ModifyType) String() string { return enumName(modifyTypeNames, k) }
func (m RenameMode) String() string { return enumName(renameModeNames, m) }

// ModifyKind carries the modify sub-kind and, for renames, which side(s)
// of the rename the event describes.
type ModifyKind struct {
	Type   ModifyType
	Rename RenameMode
}

// EventKind is the structured classification of an Event. Only the field
// matching Type is meaningful.
type EventKind struct {
	Type   KindType
	Access AccessKind
	Create ObjectKind
	Modify ModifyKind
	Remove ObjectKind
}

func KindAny() EventKind { return EventKind{Type: TypeAny} }

func KindOther() EventKind { return EventKind{Type: TypeOther} }

func KindAccess(k AccessKind) EventKind { return EventKind{Type: TypeAccess, Access: k} }

func KindCreate(k ObjectKind) EventKind { return EventKind{Type: TypeCreate, Create: k} }

func KindRemove(k ObjectKind) EventKind { return EventKind{Type: TypeRemove, Remove: k} }

func KindModifyData() EventKind {
	return EventKind{Type: TypeModify, Modify: ModifyKind{Type: ModifyData}}
}

func KindModifyMetadata() EventKind {
	return EventKind{Type: TypeModify, Modify: ModifyKind{Type: ModifyMetadata}}
}

func KindModifyOther() EventKind {
	return EventKind{Type: TypeModify, Modify: ModifyKind{Type: ModifyOther}}
}

// KindRename builds a Modify{name} kind for the given side(s).
func KindRename(mode RenameMode) EventKind {
	return EventKind{Type: TypeModify, Modify: ModifyKind{Type: ModifyName, Rename: mode}}
}

func (k EventKind) IsAny() bool    { return k.Type == TypeAny }
func (k EventKind) IsAccess() bool { return k.Type == TypeAccess }
func (k EventKind) IsCreate() bool { return k.Type == TypeCreate }
func (k EventKind) IsModify() bool { return k.Type == TypeModify }
func (k EventKind) IsRemove() bool { return k.Type == TypeRemove }
func (k EventKind) IsOther() bool  { return k.Type == TypeOther }

// IsRename reports whether k is a Modify{name} kind.
func (k EventKind) IsRename() bool {
	return k.Type == TypeModify && k.Modify.Type == ModifyName
}

// normalized clears the sub-kinds that do not belong to Type so that two
// kinds built differently still compare equal.
func (k EventKind) normalized() EventKind {
	n := EventKind{Type: k.Type}
	switch k.Type {
	case TypeAccess:
		n.Access = k.Access
	case TypeCreate:
		n.Create = k.Create
	case TypeRemove:
		n.Remove = k.Remove
	case TypeModify:
		n.Modify.Type = k.Modify.Type
		if k.Modify.Type == ModifyName {
			n.Modify.Rename = k.Modify.Rename
		}
	}
	return n
}

// Equal compares the meaningful parts of two kinds.
func (k EventKind) Equal(o EventKind) bool {
	return k.normalized() == o.normalized()
}

func (k EventKind) String() string {
	switch k.Type {
	case TypeAccess:
		return fmt.Sprintf("access(%s)", k.Access)
	case TypeCreate:
		return fmt.Sprintf("create(%s)", k.Create)
	case TypeRemove:
		return fmt.Sprintf("remove(%s)", k.Remove)
	case TypeModify:
		if k.Modify.Type == ModifyName {
			return fmt.Sprintf("modify(name(%s))", k.Modify.Rename)
		}
		return fmt.Sprintf("modify(%s)", k.Modify.Type)
	default:
		return k.Type.String()
	}
}

type modifyKindJSON struct {
	Kind string `json:"kind"`
	Mode string `json:"mode,omitempty"`
}

type eventKindJSON struct {
	Type   string          `json:"type"`
	Access string          `json:"access,omitempty"`
	Create string          `json:"create,omitempty"`
	Modify *modifyKindJSON `json:"modify,omitempty"`
	Remove string          `json:"remove,omitempty"`
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	out := eventKindJSON{Type: k.Type.String()}
	switch k.Type {
	case TypeAccess:
		out.Access = k.Access.String()
	case TypeCreate:
		out.Create = k.Create.String()
	case TypeRemove:
		out.Remove = k.Remove.String()
	case TypeModify:
		m := &modifyKindJSON{Kind: k.Modify.Type.String()}
		if k.Modify.Type == ModifyName {
			m.Mode = k.Modify.Rename.String()
		}
		out.Modify = m
	}
	return json.Marshal(out)
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var in eventKindJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var parsed EventKind
	var err error
	if parsed.Type, err = parseEnum[KindType](kindTypeNames, in.Type); err != nil {
		return fmt.Errorf("event kind type: %w", err)
	}

	switch parsed.Type {
	case TypeAccess:
		parsed.Access, err = parseEnum[AccessKind](accessKindNames, in.Access)
	case TypeCreate:
		parsed.Create, err = parseEnum[ObjectKind](objectKindNames, in.Create)
	case TypeRemove:
		parsed.Remove, err = parseEnum[ObjectKind](objectKindNames, in.Remove)
	case TypeModify:
		if in.Modify == nil {
			break
		}
		if parsed.Modify.Type, err = parseEnum[ModifyType](modifyTypeNames, in.Modify.Kind); err != nil {
			break
		}
		if parsed.Modify.Type == ModifyName {
			parsed.Modify.Rename, err = parseEnum[RenameMode](renameModeNames, in.Modify.Mode)
		}
	}
	if err != nil {
		return fmt.Errorf("event kind %s: %w", in.Type, err)
	}

	*k = parsed
	return nil
}

func enumName[T ~uint8](names []string, v T) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "unknown"
}

// parseEnum maps a name back to its enum value; an empty name is the "any"
// variant, which is always index zero.
func parseEnum[T ~uint8](names []string, s string) (T, error) {
	if s == "" {
		return 0, nil
	}
	for i, name := range names {
		if name == s {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("unknown value %q", s)
}
