package discovery

import "strings"

// Marker tables. Entries match a dependency name exactly (case-insensitive)
// or as a path prefix, so "github.com/labstack/echo" also matches
// "github.com/labstack/echo/v4".

var testMarkers = []string{
	"xunit", "xunit.core", "nunit", "mstest.testframework", "mstest",
	"microsoft.net.test.sdk", "jest", "vitest", "mocha", "@playwright/test",
	"cypress", "pytest", "rspec",
}

var webSDKs = []string{
	"microsoft.net.sdk.web",
}

var webMarkers = []string{
	"express", "fastify", "koa", "@nestjs/core", "hono",
	"github.com/gin-gonic/gin", "github.com/labstack/echo", "github.com/gofiber/fiber",
	"github.com/go-chi/chi", "axum", "actix-web", "rocket",
	"django", "flask", "fastapi", "shelf",
}

var frontendSDKs = []string{
	"microsoft.net.sdk.blazorwebassembly",
}

var frontendMarkers = []string{
	"react", "react-dom", "next", "vue", "nuxt", "@angular/core", "svelte",
	"@sveltejs/kit", "solid-js", "microsoft.aspnetcore.components.webassembly",
	"flutter",
}

// Classify assigns a ProjectType from manifest facts. Rule order matters:
// test wins over web and frontend because test projects reference the
// frameworks they test.
func Classify(m Manifest) ProjectType {
	deps := m.Dependencies
	if m.Kind == KindMSBuild {
		// PackageReferences carry no dev/runtime split.
		deps = append(append([]string{}, m.Dependencies...), m.DevDependencies...)
	}

	switch {
	case m.TestProject || anyMarker(deps, testMarkers):
		return TypeTest
	case matchesAny(m.SDK, webSDKs) || anyMarker(deps, webMarkers):
		return TypeWebService
	case matchesAny(m.SDK, frontendSDKs) || anyMarker(deps, frontendMarkers):
		return TypeFrontendApp
	case m.Executable:
		return TypeExecutable
	case m.HasIdentity || m.DependencyCount() > 0:
		return TypeLibrary
	default:
		return TypeOther
	}
}

func anyMarker(deps, markers []string) bool {
	for _, d := range deps {
		if matchesAny(d, markers) {
			return true
		}
	}
	return false
}

func matchesAny(name string, markers []string) bool {
	if name == "" {
		return false
	}
	n := strings.ToLower(strings.TrimSpace(name))
	for _, m := range markers {
		if n == m || strings.HasPrefix(n, m+"/") {
			return true
		}
	}
	return false
}
