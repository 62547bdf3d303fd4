// Diagnostic tool that prints the structure of a converted HDF5 file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/idia-astro/hdf5convert/hdf5"
)

var (
	showAttrs = flag.Bool("attrs", true, "")
	maxValue  = flag.Int("width", 60, "")
)

const helpMessage = `
diagnose prints the groups, datasets and attributes of an HDF5 file

Usage: diagnose [options] <file.hdf5>

      -attrs      (flag)    Print attribute values (default true).
      -width      =number   Truncate attribute values to this many characters.
`

func main() {
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if err := diagnose(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func diagnose(filename string) error {
	fmt.Printf("=== Analyzing %s ===\n\n", filename)
	st, err := os.Stat(filename)
	if err != nil {
		return err
	}
	fmt.Printf("File size: %s\n\n", humanize.IBytes(uint64(st.Size())))

	f, err := hdf5.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	attrs := map[string][]hdf5.AttrInfo{}
	if *showAttrs {
		err := f.WalkAttrs(func(a hdf5.AttrInfo) error {
			attrs[a.ObjectPath] = append(attrs[a.ObjectPath], a)
			return nil
		})
		if err != nil {
			return err
		}
	}

	var groups, datasets int
	var raw uint64
	err = hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
		indent := strings.Repeat("  ", len(hdf5.SplitPath(path)))
		switch o := obj.(type) {
		case *hdf5.Group:
			groups++
			fmt.Printf("%sGroup %q (%d members)\n", indent, path, len(o.Members()))
		case *hdf5.Dataset:
			datasets++
			bytes := o.NumElements() * elemBytes(o.Type())
			raw += bytes
			fmt.Printf("%sDataset %q: %s %v", indent, path, o.Type(), o.Shape())
			if c := o.Chunks(); c != nil {
				fmt.Printf(" chunks %v", c)
			}
			fmt.Printf(", %s\n", humanize.IBytes(bytes))
		default:
			fmt.Printf("%s%q: ERROR %v\n", indent, path, err)
			return nil
		}
		for _, a := range attrs[path] {
			printAttr(indent+"  ", a)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("\n%d groups, %d datasets, %s of data\n", groups, datasets, humanize.IBytes(raw))
	return nil
}

func printAttr(indent string, a hdf5.AttrInfo) {
	if a.Err != nil {
		fmt.Printf("%s@%s: ERROR %v\n", indent, a.Name, a.Err)
		return
	}
	v := fmt.Sprintf("%v", a.Value)
	if s, ok := a.Value.(string); ok {
		v = fmt.Sprintf("%q", s)
	}
	if *maxValue > 3 && len(v) > *maxValue {
		v = v[:*maxValue-3] + "..."
	}
	fmt.Printf("%s@%s (%s) = %s\n", indent, a.Name, a.Attr.Type(), v)
}

func elemBytes(typ string) uint64 {
	switch typ {
	case "uint8":
		return 1
	case "float32":
		return 4
	default:
		return 8
	}
}
