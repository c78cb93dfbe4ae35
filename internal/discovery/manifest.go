package discovery

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

// parseFunc turns raw manifest bytes into facts. absPath lets a parser
// look at sibling files (src/main.rs, cmd/) for executable markers.
type parseFunc func(absPath string, data []byte) (Manifest, error)

// manifestKindFor maps a filename to its manifest kind, or "" when the
// file is not a recognised manifest.
func manifestKindFor(name string) ManifestKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csproj", ".fsproj", ".vbproj":
		return KindMSBuild
	}
	switch name {
	case "package.json":
		return KindNPM
	case "go.mod":
		return KindGoMod
	case "Cargo.toml":
		return KindCargo
	case "pyproject.toml":
		return KindPyProject
	case "pubspec.yaml":
		return KindPubspec
	}
	return ""
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var parsers = map[ManifestKind]parseFunc{
	KindMSBuild:   parseMSBuild,
	KindNPM:       parseNPM,
	KindGoMod:     parseGoMod,
	KindCargo:     parseCargo,
	KindPyProject: parsePyProject,
	KindPubspec:   parsePubspec,
}

// ParseManifest parses data as a manifest of the given kind.
func ParseManifest(kind ManifestKind, absPath string, data []byte) (Manifest, error) {
	parse, ok := parsers[kind]
	if !ok {
		return Manifest{}, fmt.Errorf("unsupported manifest kind %q", kind)
	}
	m, err := parse(absPath, bytes.TrimPrefix(data, utf8BOM))
	if err != nil {
		return Manifest{}, err
	}
	m.Kind = kind
	return m, nil
}

// --- MSBuild project files ---

type msbuildProject struct {
	SDK      string `xml:"Sdk,attr"`
	SDKElems []struct {
		Name string `xml:"Name,attr"`
	} `xml:"Sdk"`
	PropertyGroups []struct {
		OutputType       string `xml:"OutputType"`
		TargetFramework  string `xml:"TargetFramework"`
		TargetFrameworks string `xml:"TargetFrameworks"`
		IsTestProject    string `xml:"IsTestProject"`
		AssemblyName     string `xml:"AssemblyName"`
	} `xml:"PropertyGroup"`
	ItemGroups []struct {
		Packages []struct {
			Include string `xml:"Include,attr"`
		} `xml:"PackageReference"`
		Projects []struct {
			Include string `xml:"Include,attr"`
		} `xml:"ProjectReference"`
	} `xml:"ItemGroup"`
}

func parseMSBuild(absPath string, data []byte) (Manifest, error) {
	var p msbuildProject
	if err := xml.Unmarshal(data, &p); err != nil {
		return Manifest{}, fmt.Errorf("parsing project XML: %w", err)
	}

	m := Manifest{
		Name:        strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath)),
		SDK:         p.SDK,
		HasIdentity: true,
	}
	if m.SDK == "" && len(p.SDKElems) > 0 {
		m.SDK = p.SDKElems[0].Name
	}
	for _, pg := range p.PropertyGroups {
		if pg.AssemblyName != "" {
			m.Name = strings.TrimSpace(pg.AssemblyName)
		}
		if pg.OutputType != "" {
			m.OutputType = strings.TrimSpace(pg.OutputType)
		}
		if m.FrameworkVersion == "" && pg.TargetFramework != "" {
			m.FrameworkVersion = strings.TrimSpace(pg.TargetFramework)
		}
		if m.FrameworkVersion == "" && pg.TargetFrameworks != "" {
			m.FrameworkVersion = strings.TrimSpace(strings.Split(pg.TargetFrameworks, ";")[0])
		}
		if strings.EqualFold(strings.TrimSpace(pg.IsTestProject), "true") {
			m.TestProject = true
		}
	}
	for _, ig := range p.ItemGroups {
		for _, pkg := range ig.Packages {
			if pkg.Include != "" {
				m.Dependencies = append(m.Dependencies, pkg.Include)
			}
		}
		for _, ref := range ig.Projects {
			if ref.Include != "" {
				m.Dependencies = append(m.Dependencies, strings.ReplaceAll(ref.Include, `\`, "/"))
			}
		}
	}
	switch strings.ToLower(m.OutputType) {
	case "exe", "winexe":
		m.Executable = true
	}
	return m, nil
}

// --- package.json ---

type npmPackage struct {
	Name            string            `json:"name"`
	Main            string            `json:"main"`
	Bin             json.RawMessage   `json:"bin"`
	Engines         map[string]string `json:"engines"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parseNPM(absPath string, data []byte) (Manifest, error) {
	var p npmPackage
	if err := json.Unmarshal(data, &p); err != nil {
		return Manifest{}, fmt.Errorf("parsing package.json: %w", err)
	}
	m := Manifest{
		Name:             p.Name,
		HasIdentity:      p.Name != "" || p.Main != "",
		FrameworkVersion: p.Engines["node"],
		Dependencies:     sortedKeys(p.Dependencies),
		DevDependencies:  sortedKeys(p.DevDependencies),
		Executable:       hasBin(p.Bin),
	}
	if m.Name == "" {
		m.Name = filepath.Base(filepath.Dir(absPath))
	}
	return m, nil
}

// hasBin reports whether a "bin" field is a non-empty string or object.
func hasBin(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s != ""
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err == nil {
		return len(obj) > 0
	}
	return false
}

// --- go.mod ---

var goMainRe = regexp.MustCompile(`(?m)^package\s+main\s*$`)

func parseGoMod(absPath string, data []byte) (Manifest, error) {
	f, err := modfile.ParseLax(absPath, data, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("parsing go.mod: %w", err)
	}
	if f.Module == nil {
		return Manifest{}, fmt.Errorf("go.mod has no module directive")
	}
	m := Manifest{
		Name:        f.Module.Mod.Path,
		HasIdentity: true,
	}
	if f.Go != nil {
		m.FrameworkVersion = f.Go.Version
	}
	for _, r := range f.Require {
		if r.Indirect {
			m.DevDependencies = append(m.DevDependencies, r.Mod.Path)
			continue
		}
		m.Dependencies = append(m.Dependencies, r.Mod.Path)
	}
	m.Executable = goHasMain(filepath.Dir(absPath))
	return m, nil
}

// goHasMain looks for a main package at the module root or under cmd/*.
func goHasMain(dir string) bool {
	candidates, _ := filepath.Glob(filepath.Join(dir, "*.go"))
	more, _ := filepath.Glob(filepath.Join(dir, "cmd", "*", "*.go"))
	candidates = append(candidates, more...)
	for _, c := range candidates {
		if strings.HasSuffix(c, "_test.go") {
			continue
		}
		data, err := os.ReadFile(c)
		if err != nil {
			continue
		}
		if goMainRe.Match(data) {
			return true
		}
	}
	return false
}

// --- Cargo.toml ---

type cargoManifest struct {
	Package struct {
		Name        string `toml:"name"`
		Edition     string `toml:"edition"`
		RustVersion string `toml:"rust-version"`
	} `toml:"package"`
	Dependencies    map[string]any `toml:"dependencies"`
	DevDependencies map[string]any `toml:"dev-dependencies"`
	Bin             []struct {
		Name string `toml:"name"`
	} `toml:"bin"`
}

func parseCargo(absPath string, data []byte) (Manifest, error) {
	var c cargoManifest
	if err := toml.Unmarshal(data, &c); err != nil {
		return Manifest{}, fmt.Errorf("parsing Cargo.toml: %w", err)
	}
	m := Manifest{
		Name:             c.Package.Name,
		HasIdentity:      c.Package.Name != "",
		FrameworkVersion: c.Package.RustVersion,
		Dependencies:     sortedKeys(c.Dependencies),
		DevDependencies:  sortedKeys(c.DevDependencies),
		Executable:       len(c.Bin) > 0,
	}
	if m.FrameworkVersion == "" && c.Package.Edition != "" {
		m.FrameworkVersion = "edition " + c.Package.Edition
	}
	if !m.Executable {
		if _, err := os.Stat(filepath.Join(filepath.Dir(absPath), "src", "main.rs")); err == nil {
			m.Executable = true
		}
	}
	if m.Name == "" {
		m.Name = filepath.Base(filepath.Dir(absPath))
	}
	return m, nil
}

// --- pyproject.toml ---

type pyProject struct {
	Project struct {
		Name                 string              `toml:"name"`
		RequiresPython       string              `toml:"requires-python"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		Scripts              map[string]string   `toml:"scripts"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string            `toml:"name"`
			Dependencies map[string]any    `toml:"dependencies"`
			Scripts      map[string]string `toml:"scripts"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// pep508Name extracts the distribution name from a requirement string
// such as "fastapi[all]>=0.110; python_version>'3.8'".
var pep508Name = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

func parsePyProject(absPath string, data []byte) (Manifest, error) {
	var p pyProject
	if err := toml.Unmarshal(data, &p); err != nil {
		return Manifest{}, fmt.Errorf("parsing pyproject.toml: %w", err)
	}
	m := Manifest{
		Name:             p.Project.Name,
		FrameworkVersion: p.Project.RequiresPython,
		Executable:       len(p.Project.Scripts) > 0 || len(p.Tool.Poetry.Scripts) > 0,
	}
	if m.Name == "" {
		m.Name = p.Tool.Poetry.Name
	}
	m.HasIdentity = m.Name != ""

	for _, req := range p.Project.Dependencies {
		if match := pep508Name.FindStringSubmatch(req); match != nil {
			m.Dependencies = append(m.Dependencies, strings.ToLower(match[1]))
		}
	}
	for name := range p.Tool.Poetry.Dependencies {
		if strings.EqualFold(name, "python") {
			if v, ok := p.Tool.Poetry.Dependencies[name].(string); ok && m.FrameworkVersion == "" {
				m.FrameworkVersion = v
			}
			continue
		}
		m.Dependencies = append(m.Dependencies, strings.ToLower(name))
	}
	for _, group := range sortedKeys(p.Project.OptionalDependencies) {
		for _, req := range p.Project.OptionalDependencies[group] {
			if match := pep508Name.FindStringSubmatch(req); match != nil {
				m.DevDependencies = append(m.DevDependencies, strings.ToLower(match[1]))
			}
		}
	}
	sort.Strings(m.Dependencies)
	if m.Name == "" {
		m.Name = filepath.Base(filepath.Dir(absPath))
	}
	return m, nil
}

// --- pubspec.yaml ---

type pubspec struct {
	Name            string            `yaml:"name"`
	Environment     map[string]string `yaml:"environment"`
	Dependencies    map[string]any    `yaml:"dependencies"`
	DevDependencies map[string]any    `yaml:"dev_dependencies"`
	Executables     map[string]any    `yaml:"executables"`
}

func parsePubspec(absPath string, data []byte) (Manifest, error) {
	var p pubspec
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Manifest{}, fmt.Errorf("parsing pubspec.yaml: %w", err)
	}
	m := Manifest{
		Name:             p.Name,
		HasIdentity:      p.Name != "",
		FrameworkVersion: p.Environment["sdk"],
		Dependencies:     sortedKeys(p.Dependencies),
		DevDependencies:  sortedKeys(p.DevDependencies),
		Executable:       len(p.Executables) > 0,
	}
	if m.Name == "" {
		m.Name = filepath.Base(filepath.Dir(absPath))
	}
	return m, nil
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
