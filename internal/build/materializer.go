package build

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	PackageManifestFile = "package.json"
	BridgeConfigFile    = "capacitor.config.json"
	WebDir              = "www"

	capacitorVersion = "^6.0.0"
)

var nonPackageNameChars = regexp.MustCompile(`[^a-z0-9]+`)

type packageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description"`
	Private      bool              `json:"private"`
	Dependencies map[string]string `json:"dependencies"`
}

type bridgeConfig struct {
	AppID             string              `json:"appId"`
	AppName           string              `json:"appName"`
	WebDir            string              `json:"webDir"`
	BundledWebRuntime bool                `json:"bundledWebRuntime"`
	Android           bridgeAndroidConfig `json:"android"`
}

type bridgeAndroidConfig struct {
	VersionName string `json:"versionName"`
	VersionCode int    `json:"versionCode"`
}

// Materializer generates a Capacitor project for a validated web application.
type Materializer struct{}

type MaterializerMaterializeParams struct {
	Request    *Request
	AssetsDir  string // validated web assets
	ProjectDir string
}

// Materialize writes the project descriptors into ProjectDir and copies
// the web assets into ProjectDir/www. For the same request it produces
// byte-identical descriptors. Errors are ErrMaterialization.
func (*Materializer) Materialize(params *MaterializerMaterializeParams) error {
	req := params.Request

	if err := os.MkdirAll(params.ProjectDir, 0o777); err != nil {
		return stageError(ErrMaterialization, err)
	}

	manifest := packageManifest{
		Name:        projectPackageName(req.AppName),
		Version:     req.VersionName,
		Description: "Web to APK conversion",
		Private:     true,
		Dependencies: map[string]string{
			"@capacitor/android": capacitorVersion,
			"@capacitor/cli":     capacitorVersion,
			"@capacitor/core":    capacitorVersion,
		},
	}
	if err := writeJSONFile(filepath.Join(params.ProjectDir, PackageManifestFile), manifest); err != nil {
		return stageError(ErrMaterialization, err)
	}

	config := bridgeConfig{
		AppID:             req.PackageName,
		AppName:           req.AppName,
		WebDir:            WebDir,
		BundledWebRuntime: false,
		Android: bridgeAndroidConfig{
			VersionName: req.VersionName,
			VersionCode: req.VersionCode,
		},
	}
	if err := writeJSONFile(filepath.Join(params.ProjectDir, BridgeConfigFile), config); err != nil {
		return stageError(ErrMaterialization, err)
	}

	if err := copyDir(params.AssetsDir, filepath.Join(params.ProjectDir, WebDir)); err != nil {
		return stageError(ErrMaterialization, err)
	}

	return nil
}

// projectPackageName derives an npm package name from an app name.
func projectPackageName(appName string) string {
	name := nonPackageNameChars.ReplaceAllString(strings.ToLower(appName), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "app"
	}
	return name
}

func writeJSONFile(name string, v any) error {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(name, buf.Bytes(), 0o666)
}
