package converter

import "github.com/blang/semver"

const (
	// Name is stored in the HDF5_CONVERTER attribute.
	Name = "hdf5convert"

	// SchemaVersion is the version of the output layout.
	SchemaVersion = "0.3"
)

// Version of the converter, stored in HDF5_CONVERTER_VERSION.
var Version = semver.MustParse("0.4.0")

// SchemaRange matches schema versions readers of this layout accept.
var SchemaRange = semver.MustParseRange(">=0.3.0 <0.4.0")
