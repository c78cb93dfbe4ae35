package solution

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/discovery"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

const webCsproj = `<Project Sdk="Microsoft.NET.Sdk.Web"><PropertyGroup><TargetFramework>net8.0</TargetFramework></PropertyGroup></Project>`

func newRepo(t *testing.T, managed bool) (string, *Service) {
	t.Helper()
	root := t.TempDir()
	if managed {
		require.NoError(t, os.MkdirAll(filepath.Join(root, config.BotDir), 0o755))
	}
	return root, NewService(config.Default(root), nil)
}

func TestMerge_Precedence(t *testing.T) {
	p := discovery.DiscoveredProject{Name: "X", Type: discovery.TypeWebService, Path: "src/X", DependencyCount: 3}

	unregistered := Merge(p, nil, "be")
	assert.Equal(t, "be", unregistered.Alias)
	assert.Equal(t, AliasInferred, unregistered.AliasSource)
	assert.Equal(t, "Backend web service", unregistered.Summary)
	assert.Equal(t, []string{"backend", "api"}, unregistered.Tags)
	assert.False(t, unregistered.Registered)

	entry := &registry.Entry{ProjectName: "X", Alias: "orders", Tags: []string{"core"}, Owner: "team"}
	merged := Merge(p, entry, "be")
	assert.Equal(t, "orders", merged.Alias)
	assert.Equal(t, AliasFromRegistry, merged.AliasSource)
	assert.Equal(t, "be", merged.InferredAlias)
	assert.Equal(t, "Backend web service", merged.Summary, "empty registry summary falls back")
	assert.Equal(t, []string{"core"}, merged.Tags)
	assert.Equal(t, "team", merged.Owner)
	assert.Equal(t, discovery.TypeWebService, merged.Type)
	assert.Equal(t, 3, merged.DependencyCount)
	assert.True(t, merged.Registered)
}

func TestMerge_EmptyRegistryAliasKeepsInferred(t *testing.T) {
	p := discovery.DiscoveredProject{Name: "Lib", Type: discovery.TypeLibrary}
	m := Merge(p, &registry.Entry{ProjectName: "Lib", Summary: "Utilities"}, "lib")
	assert.Equal(t, "lib", m.Alias)
	assert.Equal(t, AliasInferred, m.AliasSource)
	assert.Equal(t, "Utilities", m.Summary)
}

// One web-service manifest and no registry: one project aliased "be".
func TestStructure_SingleWebServiceNoRegistry(t *testing.T) {
	root, svc := newRepo(t, false)
	writeFile(t, root, "src/Api/Api.csproj", webCsproj)

	st, report, err := svc.Structure(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Projects, 1)
	assert.Equal(t, "be", st.Projects[0].Alias)
	assert.Equal(t, discovery.TypeWebService, st.Projects[0].Type)
	assert.Equal(t, 1, st.CountsByType["web-service"])
	assert.Empty(t, report.Errors)
}

// Register "X" with alias "api"; the rescanned merged view shows "api".
func TestRegister_AliasWinsOnRescan(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "X/X.csproj", webCsproj)
	ctx := context.Background()

	saved, report, err := svc.Register(ctx, registry.Entry{ProjectName: "X", Alias: "api"})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)

	m, report, err := svc.Project(ctx, "X")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "api", m.Alias)
	assert.Equal(t, "be", m.InferredAlias)
	assert.Equal(t, discovery.TypeWebService, m.Type)
	assert.Empty(t, report.Errors)

	byAlias, _, err := svc.Project(ctx, "API")
	require.NoError(t, err)
	require.NotNil(t, byAlias)
	assert.Equal(t, "X", byAlias.Name)
}

func TestRegister_ConflictingAliasRejected(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "A/A.csproj", webCsproj)
	writeFile(t, root, "B/B.csproj", webCsproj)
	ctx := context.Background()

	_, report, err := svc.Register(ctx, registry.Entry{ProjectName: "A", Alias: "api"})
	require.NoError(t, err)
	require.Empty(t, report.Errors)
	before, err := os.ReadFile(filepath.Join(root, ".bot", "registry.json"))
	require.NoError(t, err)

	saved, report, err := svc.Register(ctx, registry.Entry{ProjectName: "B", Alias: "api"})
	require.NoError(t, err)
	assert.Nil(t, saved)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, issues.AliasConflict, report.Errors[0].Code)
	assert.Equal(t, "A", report.Errors[0].Details["existing"])
	assert.Equal(t, "B", report.Errors[0].Details["project"])

	after, err := os.ReadFile(filepath.Join(root, ".bot", "registry.json"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRegister_UndiscoveredProjectWarns(t *testing.T) {
	_, svc := newRepo(t, true)
	saved, report, err := svc.Register(context.Background(), registry.Entry{ProjectName: "Ghost"})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1, issues.Count(report.Warnings, issues.ProjectNotFound))
}

func TestRegister_ShadowedInferredAliasWarns(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "api/package.json", `{"name":"api","dependencies":{"express":"4"}}`)
	writeFile(t, root, "tool/package.json", `{"name":"tool","bin":"cli.js"}`)

	_, report, err := svc.Register(context.Background(), registry.Entry{ProjectName: "tool", Alias: "be"})
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	require.Equal(t, 1, issues.Count(report.Warnings, issues.AliasConflict))

	_, report, err = svc.Structure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, issues.Count(report.Warnings, issues.AliasConflict))
}

func TestRegister_RequiresManagedTree(t *testing.T) {
	root, svc := newRepo(t, false)
	_, report, err := svc.Register(context.Background(), registry.Entry{ProjectName: "X"})
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, issues.DotbotNotFound, report.Errors[0].Code)
	_, statErr := os.Stat(filepath.Join(root, ".bot"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnregister(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "X/X.csproj", webCsproj)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, registry.Entry{ProjectName: "X", Alias: "api"})
	require.NoError(t, err)

	report, err := svc.Unregister(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	report, err = svc.Unregister(ctx, "X")
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, issues.ProjectNotFound, report.Errors[0].Code)

	m, _, err := svc.Project(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "be", m.Alias)
}

func TestStructure_BrokenRegistryIsReported(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "X/X.csproj", webCsproj)
	writeFile(t, root, ".bot/registry.json", `{broken`)

	st, report, err := svc.Structure(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Projects, 1)
	assert.Equal(t, "be", st.Projects[0].Alias)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, issues.RegistryParseError, report.Errors[0].Code)
}

func TestStructure_UndiscoveredRegistryEntry(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, ".bot/registry.json", `{"registryVersion":"1.0.0","projects":{"Old":{"projectName":"Old"}}}`)

	st, report, err := svc.Structure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Old"}, st.Undiscovered)
	assert.Equal(t, 1, issues.Count(report.Warnings, issues.ProjectNotFound))
}

func TestProject_NotFound(t *testing.T) {
	_, svc := newRepo(t, false)
	m, report, err := svc.Project(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, m)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, issues.ProjectNotFound, report.Errors[0].Code)
}

func TestAliasCollisions_InferredDuplicates(t *testing.T) {
	merged := []MergedProject{
		{Name: "a.Tests", Alias: "test", AliasSource: AliasInferred},
		{Name: "b.Tests", Alias: "test", AliasSource: AliasInferred},
		{Name: "core", Alias: "core", AliasSource: AliasInferred},
	}
	got := aliasCollisions(merged)
	require.Len(t, got, 1)
	assert.Equal(t, issues.AliasConflict, got[0].Code)
	assert.Equal(t, issues.SeverityWarning, got[0].Severity)
}

// A second register call that supplies only an owner keeps the alias and
// summary written by the first.
func TestRegister_UpdateKeepsUnsuppliedFields(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "Orders/Orders.csproj", webCsproj)
	ctx := context.Background()

	_, report, err := svc.Register(ctx, registry.Entry{
		ProjectName: "Orders", Alias: "api", Summary: "Orders API", Tags: []string{"core"},
	})
	require.NoError(t, err)
	require.Empty(t, report.Errors)

	saved, report, err := svc.Register(ctx, registry.Entry{ProjectName: "Orders", Owner: "team-orders"})
	require.NoError(t, err)
	require.Empty(t, report.Errors)
	require.NotNil(t, saved)
	assert.Equal(t, "api", saved.Alias)
	assert.Equal(t, "Orders API", saved.Summary)
	assert.Equal(t, []string{"core"}, saved.Tags)
	assert.Equal(t, "team-orders", saved.Owner)

	st, _, err := svc.Structure(ctx)
	require.NoError(t, err)
	require.Len(t, st.Projects, 1)
	m := st.Projects[0]
	assert.Equal(t, "api", m.Alias)
	assert.Equal(t, AliasFromRegistry, m.AliasSource)
	assert.Equal(t, "Orders API", m.Summary)
	assert.Equal(t, "team-orders", m.Owner)
}

func TestRegister_ResetClearsNamedFields(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "Orders/Orders.csproj", webCsproj)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, registry.Entry{ProjectName: "Orders", Alias: "api", Owner: "team"})
	require.NoError(t, err)

	saved, report, err := svc.Register(ctx, registry.Entry{ProjectName: "Orders"}, registry.FieldAlias)
	require.NoError(t, err)
	require.Empty(t, report.Errors)
	require.NotNil(t, saved)
	assert.Empty(t, saved.Alias)
	assert.Equal(t, "team", saved.Owner)

	m, _, err := svc.Project(ctx, "Orders")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "be", m.Alias)
	assert.Equal(t, AliasInferred, m.AliasSource)
}

// Registering under a different letter case stores the discovered spelling,
// so the entry merges and is not reported as undiscovered.
func TestRegister_NameMatchesCaseInsensitively(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "Orders.Api/Orders.Api.csproj", webCsproj)
	ctx := context.Background()

	saved, report, err := svc.Register(ctx, registry.Entry{ProjectName: "orders.api", Alias: "orders"})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Orders.Api", saved.ProjectName)
	assert.Zero(t, issues.Count(report.Warnings, issues.ProjectNotFound))

	st, report, err := svc.Structure(ctx)
	require.NoError(t, err)
	require.Len(t, st.Projects, 1)
	assert.True(t, st.Projects[0].Registered)
	assert.Equal(t, "orders", st.Projects[0].Alias)
	assert.Empty(t, st.Undiscovered)
	assert.Zero(t, issues.Count(report.Warnings, issues.ProjectNotFound))
}

// An entry saved by hand under another letter case still merges.
func TestStructure_RegistryKeyCaseDiffers(t *testing.T) {
	root, svc := newRepo(t, true)
	writeFile(t, root, "Orders.Api/Orders.Api.csproj", webCsproj)
	writeFile(t, root, ".bot/registry.json",
		`{"registryVersion":"1.0.0","projects":{"orders.api":{"projectName":"orders.api","alias":"orders"}}}`)

	st, report, err := svc.Structure(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Projects, 1)
	assert.True(t, st.Projects[0].Registered)
	assert.Equal(t, "orders", st.Projects[0].Alias)
	assert.Empty(t, st.Undiscovered)
	assert.Zero(t, issues.Count(report.Warnings, issues.ProjectNotFound))
}
