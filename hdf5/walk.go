package hdf5

// WalkFunc is called for each object during traversal. obj is a *Group or
// *Dataset, or nil when err reports that the object could not be opened.
// Returning an error stops the walk.
type WalkFunc func(path string, obj any, err error) error

// Walk visits g and every object below it, depth first in creation order.
//
//	hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
//	    if ds, ok := obj.(*hdf5.Dataset); ok {
//	        fmt.Println(path, ds.Shape(), ds.Type())
//	    }
//	    return err
//	})
func Walk(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}
	for _, name := range g.Members() {
		childPath := joinPath(g.Path(), name)
		obj, err := g.open(name)
		if err != nil {
			if err := fn(childPath, nil, err); err != nil {
				return err
			}
			continue
		}
		switch o := obj.(type) {
		case *Group:
			if err := Walk(o, fn); err != nil {
				return err
			}
		default:
			if err := fn(childPath, o, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// AttrInfo describes one attribute visited by WalkAttrs.
type AttrInfo struct {
	// Path is the full attribute path, e.g. "/0@SCHEMA_VERSION".
	Path       string
	ObjectPath string
	Name       string
	Attr       *Attribute

	// Value is the decoded value, or nil if Err is set.
	Value any
	Err   error
}

// WalkAttrs calls fn for every attribute of every object in the file.
func (f *File) WalkAttrs(fn func(AttrInfo) error) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(path string, obj any, err error) error {
		if err != nil {
			return err
		}
		var attrs interface {
			Attrs() []string
			Attr(string) *Attribute
		}
		switch o := obj.(type) {
		case *Group:
			attrs = o
		case *Dataset:
			attrs = o
		default:
			return nil
		}
		for _, name := range attrs.Attrs() {
			a := attrs.Attr(name)
			info := AttrInfo{Path: JoinAttrPath(path, name), ObjectPath: path, Name: name, Attr: a}
			info.Value, info.Err = a.Value()
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}
