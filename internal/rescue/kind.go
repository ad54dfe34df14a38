package rescue

import (
	"sort"
	"sync"
)

// Kind is a node in the error kind tree. Rules match a kind exactly or
// through any of its ancestors.
type Kind struct {
	name   string
	parent *Kind
}

var (
	kindsMu sync.RWMutex
	kinds   = map[string]*Kind{}
)

// NewKind registers a kind under parent. Registering an existing name
// returns the already known kind.
func NewKind(name string, parent *Kind) *Kind {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if k, ok := kinds[name]; ok {
		return k
	}
	k := &Kind{name: name, parent: parent}
	kinds[name] = k
	return k
}

// LookupKind finds a registered kind by name.
func LookupKind(name string) (*Kind, bool) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	k, ok := kinds[name]
	return k, ok
}

// KindNames lists every registered kind, sorted.
func KindNames() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (k *Kind) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

func (k *Kind) Parent() *Kind {
	if k == nil {
		return nil
	}
	return k.parent
}

// Is reports whether k equals ancestor or descends from it.
func (k *Kind) Is(ancestor *Kind) bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (k *Kind) String() string {
	return k.Name()
}

var (
	KindError               = NewKind("error", nil)
	KindConfiguration       = NewKind("configuration_error", KindError)
	KindRecordNotFound      = NewKind("record_not_found", KindError)
	KindAccessDenied        = NewKind("access_denied", KindError)
	KindUnauthenticated     = NewKind("unauthenticated", KindAccessDenied)
	KindBadRequest          = NewKind("bad_request", KindError)
	KindDataLayer           = NewKind("data_layer_error", KindError)
	KindUniqueViolation     = NewKind("unique_violation", KindDataLayer)
	KindForeignKeyViolation = NewKind("foreign_key_violation", KindDataLayer)
	KindNotNullViolation    = NewKind("not_null_violation", KindDataLayer)
	KindCheckViolation      = NewKind("check_violation", KindDataLayer)
)
