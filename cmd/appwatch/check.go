package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"appwatch/internal/appcat"
	"appwatch/internal/config"
	"appwatch/internal/probe"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check probe health interactively",
	Long:  `Run each configured probe once and print what it observes, without starting the tracker.`,
}

var checkForegroundCmd = &cobra.Command{
	Use:   "foreground",
	Short: "Check the foreground window probe",
	Example: `  appwatch check foreground
  appwatch --config config.yaml check foreground`,
	RunE: runCheckForeground,
}

var checkCensusCmd = &cobra.Command{
	Use:   "census",
	Short: "Check the running-apps census probe",
	RunE:  runCheckCensus,
}

var checkNotificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Check the notification probe",
	RunE:  runCheckNotifications,
}

func init() {
	checkCmd.AddCommand(checkForegroundCmd)
	checkCmd.AddCommand(checkCensusCmd)
	checkCmd.AddCommand(checkNotificationsCmd)
	rootCmd.AddCommand(checkCmd)
}

// checkLogger is quiet: probe internals log at error level only.
func checkLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}

func runCheckForeground(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := checkLogger()
	p := buildForegroundProbe(cfg.Probes.Foreground, logger)

	start := time.Now()
	sample, err := p.Sample(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		color.Red("Foreground probe FAILED after %s: %v", elapsed.Round(time.Millisecond), err)
		return nil
	}
	if sample == nil {
		color.Yellow("Foreground probe OK (%s): no focused window", elapsed.Round(time.Millisecond))
		return nil
	}

	resolver := appcat.NewResolver(selfProcessName, productName)
	color.Green("Foreground probe OK (%s)", elapsed.Round(time.Millisecond))
	fmt.Printf("  process: %s\n", sample.Process)
	fmt.Printf("  title:   %s\n", sample.Title)
	if appID, ok := resolver.Resolve(sample.Process, sample.Title); ok {
		app, _ := resolver.App(appID)
		fmt.Printf("  app:     %s (%s)\n", appID, app.DisplayName)
	} else {
		fmt.Println("  app:     excluded from attribution")
	}
	return nil
}

func runCheckCensus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := checkLogger()
	p := buildCensusProbe(cfg.Probes.Census, logger)

	start := time.Now()
	infos, err := p.Processes(context.Background())
	elapsed := time.Since(start)

	if err != nil {
		color.Red("Census probe FAILED after %s: %v", elapsed.Round(time.Millisecond), err)
		return nil
	}

	color.Green("Census probe OK (%s): %d process groups", elapsed.Round(time.Millisecond), len(infos))
	limit := len(infos)
	if limit > 15 {
		limit = 15
	}
	for _, info := range infos[:limit] {
		marker := " "
		if info.HasWindow {
			marker = "*"
		}
		fmt.Printf("  %s %-40s x%d\n", marker, info.Process, info.Count)
	}
	if len(infos) > limit {
		fmt.Printf("  ... and %d more\n", len(infos)-limit)
	}
	return nil
}

func runCheckNotifications(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := checkLogger()
	p := buildNotificationProbe(cfg.Probes.Notification, logger)

	start := time.Now()
	events, err := p.Events(context.Background())
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, probe.ErrNoData):
		color.Yellow("Notification probe OK (%s): no notification data available", elapsed.Round(time.Millisecond))
		return nil
	case err != nil:
		color.Red("Notification probe FAILED after %s: %v", elapsed.Round(time.Millisecond), err)
		return nil
	}

	resolver := appcat.NewResolver(selfProcessName, productName)
	color.Green("Notification probe OK (%s): %d events", elapsed.Round(time.Millisecond), len(events))
	limit := len(events)
	if limit > 10 {
		limit = 10
	}
	for _, ev := range events[:limit] {
		fmt.Printf("  %-30s -> %s\n", ev.RawAppID, resolver.ResolveNotification(ev.RawAppID))
	}
	if len(events) > limit {
		fmt.Printf("  ... and %d more\n", len(events)-limit)
	}
	return nil
}
