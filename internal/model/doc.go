// Package model defines the typed records decoded from raw CKAN
// metadata documents.
//
// # Records
//
// Group, Package and Resource carry only the fields the pipeline
// acts on. The full JSON documents returned by the catalog are kept
// verbatim in the on-disk cache and in the metadata.json snapshots;
// decoding here never needs to round-trip.
//
//	pkg, err := model.DecodePackage(raw)
//	dir := pkg.Dir("output/my-group")
//	for _, res := range pkg.Resources {
//	    fmt.Println(res.FileName())
//	}
//
// # File names
//
// Resource names coming from the catalog may contain path separators
// or other characters that are invalid in file names; FileName and
// SanitizeFileName normalize them so a resource can never write
// outside its package directory.
package model
