package compat

import (
	"fmt"
	"strings"
)

// Category is a coarse neuroimaging file-format family.
type Category string

const (
	CategoryNone          Category = ""
	CategoryNIfTI         Category = "nifti"
	CategoryAFNI          Category = "afni"
	CategoryFreeSurfer    Category = "freesurfer"
	CategorySurface       Category = "surface"
	CategoryTransformFSL  Category = "transform_fsl"
	CategoryTransformANTs Category = "transform_ants"
	CategoryTransformFS   Category = "transform_fs"
	CategoryText          Category = "text"
	CategoryLog           Category = "log"
)

type categoryEntry struct {
	name Category
	exts []string
}

// categoryTable is scanned in order; the first category with a matching
// extension wins, so .mat resolves to transform_fsl.
var categoryTable = []categoryEntry{
	{CategoryNIfTI, []string{".nii", ".nii.gz"}},
	{CategoryAFNI, []string{"+orig.HEAD", "+orig.BRIK", "+tlrc.HEAD", "+tlrc.BRIK", "+orig.BRIK.gz", "+tlrc.BRIK.gz"}},
	{CategoryFreeSurfer, []string{".mgz", ".mgh"}},
	{CategorySurface, []string{".vtk", ".stl", ".gii", ".pial", ".white", ".inflated", ".sphere", ".sulc"}},
	{CategoryTransformFSL, []string{".mat"}},
	{CategoryTransformANTs, []string{".mat", "Warp.nii.gz", "InverseWarp.nii.gz", "GenericAffine.mat"}},
	{CategoryTransformFS, []string{".lta", ".xfm", ".dat"}},
	{CategoryText, []string{".txt", ".csv", ".1D", ".par", ".tsv"}},
	{CategoryLog, []string{".log"}},
}

// compatibleCategories[out] lists the input categories an output category may feed.
var compatibleCategories = map[Category][]Category{
	CategoryNIfTI:         {CategoryNIfTI, CategoryAFNI, CategoryFreeSurfer},
	CategoryAFNI:          {CategoryNIfTI, CategoryAFNI},
	CategoryFreeSurfer:    {CategoryNIfTI, CategoryFreeSurfer},
	CategorySurface:       {CategorySurface},
	CategoryTransformFSL:  {CategoryTransformFSL, CategoryTransformANTs},
	CategoryTransformANTs: {CategoryTransformFSL, CategoryTransformANTs},
	CategoryTransformFS:   {CategoryTransformFS},
	CategoryText:          {CategoryText},
	CategoryLog:           {CategoryLog},
}

// Categories lists all known categories in lookup order.
func Categories() []Category {
	out := make([]Category, len(categoryTable))
	for i, c := range categoryTable {
		out[i] = c.name
	}
	return out
}

// CategoryExtensions returns the extensions registered for a category.
func CategoryExtensions(c Category) []string {
	for _, entry := range categoryTable {
		if entry.name == c {
			out := make([]string, len(entry.exts))
			copy(out, entry.exts)
			return out
		}
	}
	return nil
}

// CategoryOf returns the category of an extension set, or CategoryNone.
func CategoryOf(exts []string) Category {
	if len(exts) == 0 {
		return CategoryNone
	}
	for _, entry := range categoryTable {
		for _, ext := range exts {
			if containsString(entry.exts, ext) {
				return entry.name
			}
			if entry.name == CategoryAFNI && isAFNISuffix(ext) {
				return entry.name
			}
		}
	}
	return CategoryNone
}

// CrossCompatible reports whether output category out may feed input category in.
func CrossCompatible(out, in Category) bool {
	for _, c := range compatibleCategories[out] {
		if c == in {
			return true
		}
	}
	return false
}

// CheckExtensionCompatibility compares the extensions an output produces with
// the extensions an input accepts. The result is one of: exact match,
// cross-format warning, or incompatible. Missing information on either side
// is allowed with a warning.
func CheckExtensionCompatibility(outExts, inExts []string) Result {
	if len(outExts) == 0 {
		return Result{Compatible: true, Warning: true, Reason: "Output extension unknown"}
	}
	if len(inExts) == 0 {
		return Result{Compatible: true, Warning: true, Reason: "Input accepts any file type"}
	}

	for _, out := range outExts {
		for _, in := range inExts {
			if extensionMatches(out, in) {
				return Result{Compatible: true}
			}
		}
	}

	outCat := CategoryOf(outExts)
	inCat := CategoryOf(inExts)
	if outCat != CategoryNone && inCat != CategoryNone && CrossCompatible(outCat, inCat) {
		return Result{
			Compatible: true,
			Warning:    true,
			Reason:     fmt.Sprintf("Cross-format: %s → %s", outCat, inCat),
		}
	}

	return Result{
		Reason: fmt.Sprintf("Extension mismatch: %s → %s", strings.Join(outExts, ", "), strings.Join(inExts, ", ")),
	}
}

// extensionMatches is an exact comparison, except that a '*' in either
// extension turns it into a prefix match (the accepted side is checked first).
func extensionMatches(out, in string) bool {
	if out == in {
		return true
	}
	if strings.Contains(in, "*") {
		return strings.HasPrefix(out, strings.Replace(in, "*", "", 1))
	}
	if strings.Contains(out, "*") {
		return strings.HasPrefix(in, strings.Replace(out, "*", "", 1))
	}
	return false
}

func isAFNISuffix(ext string) bool {
	return strings.HasPrefix(ext, "+orig") || strings.HasPrefix(ext, "+tlrc")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
