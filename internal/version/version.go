// Package version carries build metadata and prints the startup banner: a
// theme-coloured splash plus optional extended build info.
package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/proxywhirl/proxywhirl/theme"
)

var (
	Name        = "proxywhirl"
	Authors     = "ProxyWhirl Contributors"
	Description = "Proxy rotation control plane"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/proxywhirl/proxywhirl"
	GithubHomeUri   = "https://github.com/proxywhirl/proxywhirl"
	GithubLatestUri = "https://github.com/proxywhirl/proxywhirl/releases/latest"
)

// PrintVersionInfo writes the startup banner to vlog.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder
	b.WriteString(theme.ColourSplash("╔─────────────────────────────────────────╗\n"))
	b.WriteString(theme.ColourSplash("│  ProxyWhirl — proxy rotation control plane │\n"))
	b.WriteString(theme.ColourSplash("╚─────────────────────────────────────────╝\n"))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString("  ")
	b.WriteString(theme.ColourVersion(latestUri))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	vlog.Println(b.String())
}
