package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/screenpilot/internal/agent"
	"github.com/xkilldash9x/screenpilot/internal/config"
	"github.com/xkilldash9x/screenpilot/internal/credentials"
	"github.com/xkilldash9x/screenpilot/internal/decision"
	"github.com/xkilldash9x/screenpilot/internal/device"
	"github.com/xkilldash9x/screenpilot/internal/device/adb"
	"github.com/xkilldash9x/screenpilot/internal/device/browser"
	"github.com/xkilldash9x/screenpilot/internal/executor"
	"github.com/xkilldash9x/screenpilot/internal/llmclient"
	"github.com/xkilldash9x/screenpilot/internal/observability"
)

// Function variables for dependency injection in tests.
var (
	openDevice   = defaultOpenDevice
	newTransport = llmclient.NewTransport
)

func newRunCmd() *cobra.Command {
	var (
		maxTurns  int
		backend   string
		serial    string
		protocol  string
		transport string
	)

	runCmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a task on the device until it completes, runs out of turns, or is interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("max-turns") {
				cfg.SetAgentMaxTurns(maxTurns)
			}
			if flags.Changed("backend") {
				cfg.SetDeviceBackend(backend)
			}
			if flags.Changed("serial") {
				cfg.SetADBSerial(serial)
			}
			if flags.Changed("protocol") {
				cfg.SetDecisionProtocol(protocol)
			}
			if flags.Changed("transport") {
				cfg.SetDecisionTransport(transport)
			}
			if v, ok := cfg.(interface{ Validate() error }); ok {
				if err := v.Validate(); err != nil {
					return fmt.Errorf("invalid flags: %w", err)
				}
			}

			res, err := runTask(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Outcome: %s after %d turn(s)\n", res.Outcome, res.Turns)
			if res.Outcome == agent.OutcomeFailed {
				return fmt.Errorf("task failed: %s", res.Message)
			}
			return nil
		},
	}

	runCmd.Flags().IntVar(&maxTurns, "max-turns", 0, "turn budget for the task (overrides agent.max_turns)")
	runCmd.Flags().StringVar(&backend, "backend", "", "device back-end: adb or browser")
	runCmd.Flags().StringVarP(&serial, "serial", "s", "", "adb device serial")
	runCmd.Flags().StringVar(&protocol, "protocol", "", "decision protocol: functions or schema")
	runCmd.Flags().StringVar(&transport, "transport", "", "decision transport: rest or genai")
	return runCmd
}

// runTask wires the stack for one task, streams progress lines to out and
// turns cancellation of ctx into a cooperative stop.
func runTask(ctx context.Context, cfg config.Interface, task string, out io.Writer) (agent.Result, error) {
	logger := observability.GetLogger()

	ctrl, cleanup, err := newStack(ctx, cfg, logger)
	if err != nil {
		return agent.Result{}, err
	}
	defer cleanup()

	events, unsubscribe := ctrl.Subscribe(agent.EventProgress)
	if _, err := ctrl.Start(task); err != nil {
		unsubscribe()
		return agent.Result{}, err
	}

	var result agent.Result
	g := new(errgroup.Group)
	g.Go(func() error {
		for ev := range events {
			if _, err := fmt.Fprintln(out, ev.Message); err != nil {
				logger.Debug("Progress line dropped", zap.Error(err))
			}
		}
		return nil
	})
	g.Go(func() error {
		defer unsubscribe()
		stopOnCancel := context.AfterFunc(ctx, func() {
			if ctrl.Stop() {
				logger.Info("Interrupt received, stopping after the current turn.")
			}
		})
		defer stopOnCancel()

		res, err := ctrl.Wait(context.Background())
		result = res
		return err
	})
	if err := g.Wait(); err != nil {
		return agent.Result{}, err
	}
	return result, nil
}

// newStack opens the device and wires the decision client, the executor and
// a controller on top of it. cleanup closes the controller and then the device.
func newStack(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*agent.Controller, func(), error) {
	dev, closeDevice, err := openDevice(ctx, cfg.Device(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device: %w", err)
	}

	store, err := credentialStore(cfg.Credentials(), logger)
	if err != nil {
		closeDevice()
		return nil, nil, err
	}
	tr, err := newTransport(cfg.Decision(), logger)
	if err != nil {
		closeDevice()
		return nil, nil, fmt.Errorf("failed to create decision transport: %w", err)
	}

	decider := decision.NewClient(cfg.Decision(), tr, store, logger)
	exec := executor.New(cfg.Executor(), dev, logger)
	ctrl := agent.NewController(cfg.Agent(), dev, decider, exec, logger)
	return ctrl, func() {
		ctrl.Close()
		closeDevice()
	}, nil
}

// credentialStore prefers an explicitly configured key over the key file.
func credentialStore(cfg config.CredentialsConfig, logger *zap.Logger) (credentials.Store, error) {
	stores := []credentials.Store{credentials.Static(cfg.APIKey)}
	if cfg.File != "" {
		file, err := credentials.NewFileStore(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("invalid credentials file: %w", err)
		}
		stores = append(stores, file)
	}
	return credentials.NewChain(logger, stores...), nil
}

func defaultOpenDevice(ctx context.Context, cfg config.DeviceConfig, logger *zap.Logger) (device.Capability, func(), error) {
	switch cfg.Backend {
	case config.BackendADB:
		d, err := adb.New(ctx, cfg.ADB, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	case config.BackendBrowser:
		d, err := browser.New(ctx, cfg.Browser, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return nil, nil, errors.New("unsupported device backend '" + cfg.Backend + "'")
	}
}
