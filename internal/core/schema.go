package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/valter-silva-au/lmay/pkg/models"
	"gopkg.in/yaml.v3"
)

// SupportedVersions lists the document versions this validator understands.
var SupportedVersions = []string{"1.0.0", "1.1.0"}

var architecturePatterns = []string{
	"MVC", "MVVM", "Microservices", "Layered", "Hexagonal", "Clean",
	"Monolith", "Serverless", "Event-Driven", "Plugin", "Modular", "Other",
}

var ecosystems = []string{
	"npm", "pip", "go", "maven", "gradle", "cargo", "gem", "composer", "nuget", "other",
}

var entryKinds = []string{string(models.KindFile), string(models.KindDirectory)}

var topLevelFields = map[string]bool{
	"version":      true,
	"project":      true,
	"architecture": true,
	"structure":    true,
	"dependencies": true,
	"hierarchy":    true,
	"interfaces":   true,
	"metadata":     true,
}

var genericProjectNames = map[string]bool{
	"project":     true,
	"app":         true,
	"application": true,
	"untitled":    true,
}

var unsafeVersions = map[string]bool{
	"*":      true,
	"latest": true,
	"":       true,
}

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

var windowsAbsPattern = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

// frameworkLanguages maps lowercase framework names to the languages they
// are written in.
var frameworkLanguages = map[string][]string{
	"react":       {"javascript", "typescript"},
	"vue":         {"javascript", "typescript"},
	"angular":     {"typescript", "javascript"},
	"svelte":      {"javascript", "typescript"},
	"next.js":     {"javascript", "typescript"},
	"nextjs":      {"javascript", "typescript"},
	"express":     {"javascript", "typescript"},
	"nestjs":      {"typescript", "javascript"},
	"django":      {"python"},
	"flask":       {"python"},
	"fastapi":     {"python"},
	"rails":       {"ruby"},
	"sinatra":     {"ruby"},
	"spring":      {"java", "kotlin"},
	"spring-boot": {"java", "kotlin"},
	"laravel":     {"php"},
	"symfony":     {"php"},
	"gin":         {"go"},
	"echo":        {"go"},
	"fiber":       {"go"},
	"asp.net":     {"c#", "csharp"},
	"actix":       {"rust"},
	"rocket":      {"rust"},
	"flutter":     {"dart"},
}

// patternFolders are the structure keys that make up each recognisable
// architectural layout. Keys are compared lowercase without '-' and '_'.
var patternFolders = []struct {
	pattern string
	folders []string
}{
	{"MVC", []string{"models", "views", "controllers"}},
	{"MVVM", []string{"models", "views", "viewmodels"}},
	{"Layered", []string{"presentation", "business", "data"}},
	{"Hexagonal", []string{"domain", "ports", "adapters"}},
	{"Clean", []string{"entities", "usecases", "interfaces", "frameworks"}},
}

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	maxRoleLength        = 100
)

// SchemaOptions configures a SchemaValidator.
type SchemaOptions struct {
	// StrictFields reports unknown top-level fields as errors.
	StrictFields bool
	// SupportedVersions overrides the default supported version list.
	SupportedVersions []string
}

// SchemaValidator checks one loaded document against the document schema.
// It does no I/O.
type SchemaValidator struct {
	opts SchemaOptions
}

// NewSchemaValidator creates a SchemaValidator.
func NewSchemaValidator(opts SchemaOptions) *SchemaValidator {
	if len(opts.SupportedVersions) == 0 {
		opts.SupportedVersions = SupportedVersions
	}
	return &SchemaValidator{opts: opts}
}

// Validate returns the schema findings for ld.
func (v *SchemaValidator) Validate(ld *LoadedDocument) *models.ValidationResult {
	c := &schemaCheck{opts: v.opts, file: ld.Path, res: models.NewValidationResult()}

	root := deref(ld.Root)
	if root == nil || root.Kind != yaml.MappingNode {
		c.errorf(models.FindingInvalidType, root, "", "", "document root must be a mapping, got %s", nodeTypeName(root))
		return c.res
	}

	if v.opts.StrictFields {
		c.checkUnknownFields(root)
	}
	c.checkVersion(root)
	c.checkProject(root)
	c.checkArchitecture(root)
	c.checkStructure(root)
	c.checkDependencies(root)
	c.checkHierarchy(root)

	if n, ptr := c.field(root, "", "interfaces", false); n != nil && n.Kind != yaml.MappingNode && n.Kind != yaml.SequenceNode {
		c.errorf(models.FindingInvalidType, n, ptr, "", "interfaces must be a mapping or list, got %s", nodeTypeName(n))
	}
	if n, ptr := c.field(root, "", "metadata", false); n != nil {
		c.expectMapping(n, ptr, "metadata")
	}
	c.addDecodeFindings(ld)
	return c.res
}

// addDecodeFindings reports model decode errors no schema error already
// explains, so a document the validators cannot read never passes.
func (c *schemaCheck) addDecodeFindings(ld *LoadedDocument) {
	decoded := ld.DecodeFindings()
	if len(decoded) == 0 {
		return
	}
	paths := make(map[string]bool, len(c.res.Errors))
	lines := make(map[int]bool, len(c.res.Errors))
	for _, e := range c.res.Errors {
		paths[e.Path] = true
		if e.Line > 0 {
			lines[e.Line] = true
		}
	}
	for _, f := range decoded {
		if (f.Path != "" && paths[f.Path]) || (f.Line > 0 && lines[f.Line]) {
			continue
		}
		c.res.Add(f)
	}
}

type schemaCheck struct {
	opts SchemaOptions
	file string
	res  *models.ValidationResult
}

func (c *schemaCheck) add(sev models.Severity, typ models.FindingType, n *yaml.Node, ptr, suggestion, format string, args ...any) {
	f := models.Finding{
		Type:       typ,
		Severity:   sev,
		Validator:  models.ValidatorSchema,
		Message:    fmt.Sprintf(format, args...),
		File:       c.file,
		Path:       ptr,
		Suggestion: suggestion,
	}
	if n != nil {
		f.Line, f.Column = n.Line, n.Column
	}
	c.res.Add(f)
}

func (c *schemaCheck) errorf(typ models.FindingType, n *yaml.Node, ptr, suggestion, format string, args ...any) {
	c.add(models.SeverityError, typ, n, ptr, suggestion, format, args...)
}

func (c *schemaCheck) warnf(typ models.FindingType, n *yaml.Node, ptr, suggestion, format string, args ...any) {
	c.add(models.SeverityWarning, typ, n, ptr, suggestion, format, args...)
}

// field returns the non-null value of key in parent and its pointer. A
// missing required field is reported against the parent node.
func (c *schemaCheck) field(parent *yaml.Node, parentPtr, key string, required bool) (*yaml.Node, string) {
	ptr := parentPtr + pointer(key)
	_, val := mappingValue(parent, key)
	if isNull(val) {
		if required {
			c.errorf(models.FindingMissingRequiredField, parent, ptr, fmt.Sprintf("add a %q field", key), "missing required field %q", strings.TrimPrefix(ptr, "/"))
		}
		return nil, ptr
	}
	return val, ptr
}

func (c *schemaCheck) expectString(n *yaml.Node, ptr, label string) (string, bool) {
	if isString(n) {
		return n.Value, true
	}
	suggestion := ""
	if n.Kind == yaml.ScalarNode {
		suggestion = "quote the value to make it a string"
	}
	c.errorf(models.FindingInvalidType, n, ptr, suggestion, "%s must be a string, got %s", label, nodeTypeName(n))
	return "", false
}

func (c *schemaCheck) expectMapping(n *yaml.Node, ptr, label string) bool {
	if n.Kind == yaml.MappingNode {
		return true
	}
	c.errorf(models.FindingInvalidType, n, ptr, "", "%s must be a mapping, got %s", label, nodeTypeName(n))
	return false
}

func (c *schemaCheck) expectSequence(n *yaml.Node, ptr, label string) bool {
	if n.Kind == yaml.SequenceNode {
		return true
	}
	c.errorf(models.FindingInvalidType, n, ptr, "", "%s must be a list, got %s", label, nodeTypeName(n))
	return false
}

func (c *schemaCheck) optionalString(parent *yaml.Node, parentPtr, key, label string) (string, *yaml.Node, bool) {
	n, ptr := c.field(parent, parentPtr, key, false)
	if n == nil {
		return "", nil, false
	}
	s, ok := c.expectString(n, ptr, label)
	return s, n, ok
}

func (c *schemaCheck) stringList(parent *yaml.Node, parentPtr, key, label string) []string {
	n, ptr := c.field(parent, parentPtr, key, false)
	if n == nil || !c.expectSequence(n, ptr, label) {
		return nil
	}
	var out []string
	for i, item := range n.Content {
		item = deref(item)
		if s, ok := c.expectString(item, ptr+pointer(strconv.Itoa(i)), label+" entries"); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *schemaCheck) checkLength(n *yaml.Node, ptr, label, value string, min, max int) {
	l := len([]rune(value))
	switch {
	case l < min:
		c.errorf(models.FindingStringLength, n, ptr, "", "%s must not be empty", label)
	case l > max:
		c.errorf(models.FindingStringLength, n, ptr, fmt.Sprintf("shorten to at most %d characters", max), "%s is %d characters long, maximum is %d", label, l, max)
	}
}

func (c *schemaCheck) checkEnum(n *yaml.Node, ptr, label, value string, allowed []string) {
	for _, a := range allowed {
		if a == value {
			return
		}
	}
	suggestion := "use one of: " + strings.Join(allowed, ", ")
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			suggestion = fmt.Sprintf("did you mean %q?", a)
			break
		}
	}
	c.errorf(models.FindingInvalidEnumValue, n, ptr, suggestion, "%s %q is not an allowed value", label, value)
}

func (c *schemaCheck) checkRelative(n *yaml.Node, ptr, value string) {
	if isAbsolutePath(value) {
		c.warnf(models.FindingAbsolutePath, n, ptr, "use a path relative to the document's directory", "absolute path %q where a relative path is expected", value)
	}
}

func isAbsolutePath(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || windowsAbsPattern.MatchString(p)
}

func (c *schemaCheck) checkUnknownFields(root *yaml.Node) {
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if !topLevelFields[key.Value] {
			c.errorf(models.FindingUnknownField, key, pointer(key.Value), "remove the field or disable schema.strict_fields", "unknown top-level field %q", key.Value)
		}
	}
}

func (c *schemaCheck) checkVersion(root *yaml.Node) {
	n, ptr := c.field(root, "", "version", true)
	if n == nil {
		return
	}
	version, ok := c.expectString(n, ptr, "version")
	if !ok {
		return
	}
	if !semverPattern.MatchString(version) {
		c.warnf(models.FindingInvalidVersionFormat, n, ptr, "use MAJOR.MINOR.PATCH, e.g. \"1.0.0\"", "version %q does not match MAJOR.MINOR.PATCH", version)
	}
	for _, s := range c.opts.SupportedVersions {
		if s == version {
			return
		}
	}
	c.warnf(models.FindingUnsupportedVersion, n, ptr, "supported versions: "+strings.Join(c.opts.SupportedVersions, ", "), "version %q is not supported", version)
}

func (c *schemaCheck) checkProject(root *yaml.Node) {
	pn, pptr := c.field(root, "", "project", true)
	if pn == nil || !c.expectMapping(pn, pptr, "project") {
		return
	}

	if n, ptr := c.field(pn, pptr, "name", true); n != nil {
		if name, ok := c.expectString(n, ptr, "project.name"); ok {
			c.checkLength(n, ptr, "project.name", name, 1, maxNameLength)
			if genericProjectNames[strings.ToLower(strings.TrimSpace(name))] {
				c.warnf(models.FindingGenericProjectName, n, ptr, "use a name that identifies the project", "project name %q is too generic", name)
			}
		}
	}
	if desc, n, ok := c.optionalString(pn, pptr, "description", "project.description"); ok {
		c.checkLength(n, pptr+pointer("description"), "project.description", desc, 0, maxDescriptionLength)
	}

	languages := c.stringList(pn, pptr, "languages", "project.languages")
	frameworks := c.stringList(pn, pptr, "frameworks", "project.frameworks")
	if len(languages) == 0 {
		return
	}
	declared := make(map[string]bool, len(languages))
	for _, l := range languages {
		declared[strings.ToLower(strings.TrimSpace(l))] = true
	}
	fn, fptr := c.field(pn, pptr, "frameworks", false)
	for i, fw := range frameworks {
		expected, known := frameworkLanguages[strings.ToLower(strings.TrimSpace(fw))]
		if !known {
			continue
		}
		match := false
		for _, l := range expected {
			if declared[l] {
				match = true
				break
			}
		}
		if !match {
			var at *yaml.Node
			if fn != nil && i < len(fn.Content) {
				at = fn.Content[i]
			}
			c.warnf(models.FindingFrameworkLanguageMismatch, at, fptr+pointer(strconv.Itoa(i)),
				"add "+strings.Join(expected, " or ")+" to project.languages",
				"framework %q does not match declared languages %s", fw, strings.Join(languages, ", "))
		}
	}
}

func (c *schemaCheck) checkArchitecture(root *yaml.Node) {
	an, aptr := c.field(root, "", "architecture", false)
	if an == nil || !c.expectMapping(an, aptr, "architecture") {
		return
	}

	if pattern, n, ok := c.optionalString(an, aptr, "pattern", "architecture.pattern"); ok {
		c.checkEnum(n, aptr+pointer("pattern"), "architecture pattern", pattern, architecturePatterns)
	}

	en, eptr := c.field(an, aptr, "entry_points", false)
	if en == nil || !c.expectSequence(en, eptr, "architecture.entry_points") {
		return
	}
	for i, item := range en.Content {
		item = deref(item)
		iptr := eptr + pointer(strconv.Itoa(i))
		if !c.expectMapping(item, iptr, "entry point") {
			continue
		}
		if n, ptr := c.field(item, iptr, "path", true); n != nil {
			if p, ok := c.expectString(n, ptr, "entry point path"); ok {
				c.checkRelative(n, ptr, p)
			}
		}
		if role, n, ok := c.optionalString(item, iptr, "role", "entry point role"); ok {
			c.checkLength(n, iptr+pointer("role"), "entry point role", role, 0, maxRoleLength)
		}
	}
}

func (c *schemaCheck) checkStructure(root *yaml.Node) {
	sn, sptr := c.field(root, "", "structure", false)
	if sn == nil || !c.expectMapping(sn, sptr, "structure") {
		return
	}

	keys := make([]string, 0, len(sn.Content)/2)
	for i := 0; i+1 < len(sn.Content); i += 2 {
		key := sn.Content[i].Value
		keys = append(keys, key)
		c.checkStructureEntry(deref(sn.Content[i+1]), sptr+pointer(key), key)
	}
	c.checkPatterns(sn, sptr, keys)
}

func (c *schemaCheck) checkStructureEntry(en *yaml.Node, eptr, key string) {
	label := "structure entry " + strconv.Quote(key)
	if isNull(en) {
		c.errorf(models.FindingMissingRequiredField, nil, eptr+pointer("path"), "", "%s has no fields", label)
		return
	}
	if !c.expectMapping(en, eptr, label) {
		return
	}

	if n, ptr := c.field(en, eptr, "path", true); n != nil {
		if p, ok := c.expectString(n, ptr, label+" path"); ok {
			c.checkRelative(n, ptr, p)
		}
	}

	kind := ""
	if n, ptr := c.field(en, eptr, "type", true); n != nil {
		if k, ok := c.expectString(n, ptr, label+" type"); ok {
			c.checkEnum(n, ptr, label+" type", k, entryKinds)
			kind = k
		}
	}

	if link, n, ok := c.optionalString(en, eptr, "lmay_file", label+" lmay_file"); ok {
		c.checkRelative(n, eptr+pointer("lmay_file"), link)
	}
	c.optionalString(en, eptr, "description", label+" description")

	if _, n, ok := c.optionalString(en, eptr, "primary_language", label+" primary_language"); ok && kind == string(models.KindFile) {
		c.warnf(models.FindingFileLanguageAttribute, n, eptr+pointer("primary_language"), "move primary_language to the enclosing directory entry", "%s is a file but declares primary_language", label)
	}

	n, ptr := c.field(en, eptr, "file_count", false)
	if n == nil {
		return
	}
	if !isInt(n) {
		c.errorf(models.FindingInvalidType, n, ptr, "", "%s file_count must be an integer, got %s", label, nodeTypeName(n))
		return
	}
	count, err := strconv.Atoi(n.Value)
	if err != nil {
		c.errorf(models.FindingInvalidType, n, ptr, "", "%s file_count %q is not a valid integer", label, n.Value)
		return
	}
	if count < 0 {
		c.errorf(models.FindingInvalidValue, n, ptr, "", "%s file_count must not be negative, got %d", label, count)
		return
	}
	if kind == string(models.KindFile) && count != 1 {
		c.errorf(models.FindingInvalidFileCount, n, ptr, "set file_count to 1 or remove it", "%s is a file but declares file_count %d", label, count)
	}
}

func (c *schemaCheck) checkPatterns(sn *yaml.Node, sptr string, keys []string) {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.ToLower(k)
		k = strings.NewReplacer("-", "", "_", "").Replace(k)
		present[k] = true
	}

	type partial struct {
		pattern string
		missing []string
	}
	var partials []partial
	for _, pf := range patternFolders {
		var missing []string
		for _, f := range pf.folders {
			if !present[f] {
				missing = append(missing, f)
			}
		}
		matched := len(pf.folders) - len(missing)
		if len(missing) == 0 {
			// A complete layout explains any overlap with the others.
			return
		}
		if matched >= 2 {
			partials = append(partials, partial{pf.pattern, missing})
		}
	}
	sort.SliceStable(partials, func(i, j int) bool { return partials[i].pattern < partials[j].pattern })
	for _, p := range partials {
		c.warnf(models.FindingIncompletePattern, sn, sptr, "add "+strings.Join(p.missing, ", "),
			"structure partially matches the %s pattern; missing %s", p.pattern, strings.Join(p.missing, ", "))
	}
}

func (c *schemaCheck) checkDependencies(root *yaml.Node) {
	dn, dptr := c.field(root, "", "dependencies", false)
	if dn == nil || !c.expectMapping(dn, dptr, "dependencies") {
		return
	}

	if xn, xptr := c.field(dn, dptr, "external", false); xn != nil && c.expectSequence(xn, xptr, "dependencies.external") {
		for i, item := range xn.Content {
			item = deref(item)
			iptr := xptr + pointer(strconv.Itoa(i))
			if !c.expectMapping(item, iptr, "external dependency") {
				continue
			}
			name := ""
			if n, ptr := c.field(item, iptr, "name", true); n != nil {
				name, _ = c.expectString(n, ptr, "external dependency name")
			}
			if _, vn := mappingValue(item, "version"); vn != nil {
				vptr := iptr + pointer("version")
				version := ""
				switch {
				case isNull(vn):
				case vn.Kind == yaml.ScalarNode:
					version = vn.Value
				default:
					c.errorf(models.FindingInvalidType, vn, vptr, "", "dependency version must be a string, got %s", nodeTypeName(vn))
					version = "-"
				}
				if unsafeVersions[strings.ToLower(strings.TrimSpace(version))] {
					c.warnf(models.FindingUnsafeDependencyVersion, vn, vptr, "pin a version range", "dependency %q uses unpinned version %q", name, version)
				}
			}
			if eco, n, ok := c.optionalString(item, iptr, "ecosystem", "dependency ecosystem"); ok {
				c.checkEnum(n, iptr+pointer("ecosystem"), "ecosystem", eco, ecosystems)
			}
		}
	}

	if in, iptr := c.field(dn, dptr, "internal", false); in != nil && c.expectSequence(in, iptr, "dependencies.internal") {
		for i, item := range in.Content {
			item = deref(item)
			ptr := iptr + pointer(strconv.Itoa(i))
			if !c.expectMapping(item, ptr, "internal dependency") {
				continue
			}
			if n, pptr := c.field(item, ptr, "path", true); n != nil {
				if p, ok := c.expectString(n, pptr, "internal dependency path"); ok {
					c.checkRelative(n, pptr, p)
				}
			}
		}
	}
}

func (c *schemaCheck) checkHierarchy(root *yaml.Node) {
	hn, hptr := c.field(root, "", "hierarchy", false)
	if hn == nil || !c.expectMapping(hn, hptr, "hierarchy") {
		return
	}

	if n, ptr := c.field(hn, hptr, "depth", false); n != nil {
		if !isInt(n) {
			c.errorf(models.FindingInvalidType, n, ptr, "", "hierarchy.depth must be an integer, got %s", nodeTypeName(n))
		} else if d, err := strconv.Atoi(n.Value); err != nil || d < 0 {
			c.errorf(models.FindingInvalidValue, n, ptr, "", "hierarchy.depth must be a non-negative integer, got %s", n.Value)
		}
	}
	if parent, n, ok := c.optionalString(hn, hptr, "parent", "hierarchy.parent"); ok {
		c.checkRelative(n, hptr+pointer("parent"), parent)
	}
}
