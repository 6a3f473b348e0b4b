package main

import (
	"context"
	"fmt"

	"github.com/hairizuan-noorazman/testdroid-appium/bootstrap"
	"github.com/hairizuan-noorazman/testdroid-appium/capability"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		platform    string
		target      string
		bundleID    string
		appPackage  string
		appActivity string
		browser     string
		runName     string
		description string
		locale      string
		screenshot  string
		noSign      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a session with the resolved configuration, then quit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			b, err := newBootstrapper()
			if err != nil {
				return err
			}

			opts, err := bootstrap.DefaultOptions(settings)
			if err != nil {
				return err
			}
			opts.PlatformName = platform
			opts.Target = target
			opts.BundleID = bundleID
			opts.AndroidPackage = appPackage
			opts.AndroidActivity = appActivity
			opts.BrowserName = browser
			opts.TestRunName = runName
			opts.Description = description
			opts.Locale = locale
			opts.SignAppFile = !noSign

			sess, err := b.Start(ctx, opts)
			if err != nil {
				return err
			}
			defer sess.Quit(context.Background())

			result := map[string]interface{}{
				"session_id":   sess.Driver.ID(),
				"attempt_id":   sess.AttemptID,
				"capabilities": sess.Capabilities.Redacted(),
			}
			if sess.RunName != "" {
				result["test_run"] = sess.RunName
			}

			if screenshot != "" {
				loc, err := sess.CaptureScreenshot(ctx, screenshot)
				if err != nil {
					return err
				}
				result["screenshot"] = loc
			}

			if flagJSON {
				printJSON(result)
			} else {
				printMessage(fmt.Sprintf("Session: %s", sess.Driver.ID()))
				if sess.RunName != "" {
					printMessage(fmt.Sprintf("Test run: %s", sess.RunName))
				}
				if loc, ok := result["screenshot"]; ok {
					printMessage(fmt.Sprintf("Screenshot: %s", loc))
				}
			}

			return sess.Quit(context.Background())
		},
	}

	cmd.Flags().StringVar(&platform, "platform", capability.PlatformAndroid, "Platform name: Android or iOS")
	cmd.Flags().StringVar(&target, "target", capability.TargetAndroid, "Testdroid target: android, ios, chrome, safari or selendroid")
	cmd.Flags().StringVar(&bundleID, "bundle-id", "", "iOS bundle id")
	cmd.Flags().StringVar(&appPackage, "app-package", "", "Android application package")
	cmd.Flags().StringVar(&appActivity, "app-activity", "", "Android launch activity")
	cmd.Flags().StringVar(&browser, "browser", "", "Browser name for web targets")
	cmd.Flags().StringVar(&runName, "run-name", "", "Test run name (default: device name and timestamp)")
	cmd.Flags().StringVar(&description, "description", "", "Test run description")
	cmd.Flags().StringVar(&locale, "locale", "", "Device locale")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "Capture a screenshot with this name before quitting")
	cmd.Flags().BoolVar(&noSign, "no-sign", false, "Ask the cloud not to resign the application")
	return cmd
}
