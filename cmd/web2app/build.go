package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/k11v/web2app/internal/app"
	"github.com/k11v/web2app/internal/build"
	"github.com/k11v/web2app/internal/multifile"
)

type buildFlags struct {
	site        string
	icon        string
	splash      string
	appName     string
	packageName string
	versionName string
	versionCode int
}

func newBuildCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Convert a site into an APK without the server",
		Example: `  web2app build --site site.zip --app-name "My App" --package com.example.myapp
  WEB2APP_BUILDER_BACKEND=exec web2app build --site index.html --app-name Hello --package com.example.hello`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, &flags)
		},
	}

	cmd.Flags().StringVar(&flags.site, "site", "", "site archive (zip) or a single index.html")
	cmd.Flags().StringVar(&flags.icon, "icon", "", "app icon image")
	cmd.Flags().StringVar(&flags.splash, "splash", "", "splash screen image")
	cmd.Flags().StringVar(&flags.appName, "app-name", "", "app name")
	cmd.Flags().StringVar(&flags.packageName, "package", "", "package name, e.g. com.example.myapp")
	cmd.Flags().StringVar(&flags.versionName, "version-name", build.DefaultVersionName, "version name")
	cmd.Flags().IntVar(&flags.versionCode, "version-code", build.DefaultVersionCode, "version code")
	for _, name := range []string{"site", "app-name", "package"} {
		cobra.CheckErr(cmd.MarkFlagRequired(name))
	}

	return cmd
}

func runBuild(cmd *cobra.Command, flags *buildFlags) error {
	ctx := cmd.Context()

	cfg, err := app.ParseConfig(os.Environ())
	if err != nil {
		return err
	}
	log := app.NewLogger(cmd.ErrOrStderr(), cfg.Development)

	services, err := app.NewServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Warn("didn't close services", "err", closeErr)
		}
	}()

	parts := []*multifile.Part{
		{FormName: build.FormAppName, Content: strings.NewReader(flags.appName)},
		{FormName: build.FormPackageName, Content: strings.NewReader(flags.packageName)},
		{FormName: build.FormVersionName, Content: strings.NewReader(flags.versionName)},
		{FormName: build.FormVersionCode, Content: strings.NewReader(strconv.Itoa(flags.versionCode))},
	}
	files := []struct{ formName, name string }{
		{build.FormWebFiles, flags.site},
		{build.FormAppIcon, flags.icon},
		{build.FormSplashScreen, flags.splash},
	}
	for _, file := range files {
		if file.name == "" {
			continue
		}
		f, err := os.Open(file.name)
		if err != nil {
			return err
		}
		defer f.Close()
		parts = append(parts, &multifile.Part{FormName: file.formName, FileName: filepath.Base(file.name), Content: f})
	}

	req, err := services.Stager.Stage(ctx, &build.StagerStageParams{Parts: multifile.NewSliceReader(parts)})
	if err != nil {
		return err
	}

	result, err := services.Pipeline.Run(ctx, req)
	if err != nil {
		if buildErr := (*build.BuildError)(nil); errors.As(err, &buildErr) && buildErr.Log != "" {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), buildErr.Log)
		}
		return err
	}

	_, _ = fmt.Fprint(cmd.ErrOrStderr(), result.Log)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.ArtifactName)
	return nil
}
