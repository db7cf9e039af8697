package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external/geocode"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external/prices"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/httpclient"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

//dashboard wires the client side of the application together for one command invocation
type dashboard struct {
	cfg     config.AppConfig
	log     logging.Logger
	session *session.Context
	client  *httpclient.Client
	metrics *prometheus.Registry

	auth      *services.AuthService
	users     *services.UserService
	farms     *services.FarmService
	fields    *services.FieldService
	crops     *services.CropService
	sensors   *services.SensorService
	schedules *services.ScheduleService

	prices  *prices.Client
	geocode *geocode.Client

	out io.Writer
	in  *bufio.Reader
}

func newDashboard(ctx context.Context, cfg config.AppConfig, log logging.Logger, out io.Writer, in io.Reader) (*dashboard, error) {
	connect, err := database.NewConnector(cfg.StateDriver, cfg.StateDBPath, cfg.PostgresDSN, log)
	if err != nil {
		return nil, err
	}

	store, err := database.NewDatabaseConnection(connect, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}

	sess := session.New(store, log)
	registry := prometheus.NewRegistry()

	client := httpclient.New(cfg.APIBaseURL, cfg.HTTPTimeout, log,
		httpclient.WithTokenSource(sess),
		httpclient.WithUploadTimeout(cfg.UploadTimeout),
		httpclient.WithMetrics(httpclient.NewMetrics(registry)),
	)

	guard := external.Settings{Timeout: cfg.ExternalTimeout, Failures: cfg.BreakerFailures, OpenFor: cfg.BreakerOpenFor}

	d := &dashboard{
		cfg:       cfg,
		log:       log,
		session:   sess,
		client:    client,
		metrics:   registry,
		auth:      services.NewAuthService(client),
		users:     services.NewUserService(client, client),
		farms:     services.NewFarmService(client, sess),
		fields:    services.NewFieldService(client, sess),
		crops:     services.NewCropService(client, sess),
		sensors:   services.NewSensorService(client, sess),
		schedules: services.NewScheduleService(client, sess),
		prices:    prices.New(cfg.PricesBaseURL, cfg.PricesAPIKey, cfg.PricesResource, guard, log),
		geocode:   geocode.New(cfg.GeocodeBaseURL, guard, log),
		out:       out,
		in:        bufio.NewReader(in),
	}

	if err = sess.Bootstrap(ctx, d.auth); err != nil {
		log.Warnf("Unable to restore session: %s", err.Error())
	}

	return d, nil
}

//confirm asks a yes/no question on the terminal
func (d *dashboard) confirm(prompt string) bool {
	fmt.Fprintf(d.out, "%s [y/N] ", prompt)

	answer, err := d.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (d *dashboard) readLine(prompt string) (string, error) {
	fmt.Fprint(d.out, prompt)

	line, err := d.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func main() {
	serviceName := "farmdash"

	cfg := config.Load()
	log := logging.NewLoggerWithOutput(os.Stderr, cfg.LogLevel).WithField("service", serviceName)

	root := newRootCommand(cfg, log, os.Stdout, os.Stdin)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand(cfg config.AppConfig, log logging.Logger, out io.Writer, in io.Reader) *cobra.Command {
	var d *dashboard
	var showStats bool

	root := &cobra.Command{
		Use:           "farmdash",
		Short:         "Manage farms, fields, crops, sensors and schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			d, err = newDashboard(cmd.Context(), cfg, log, out, in)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if showStats && d != nil {
				printStats(cmd.ErrOrStderr(), d.metrics)
			}
		},
	}

	root.PersistentFlags().BoolVar(&showStats, "stats", false, "print API request statistics when done")
	root.SetOut(out)
	root.SetErr(os.Stderr)

	current := func() *dashboard { return d }

	root.AddCommand(
		newLoginCommand(current),
		newLogoutCommand(current),
		newWhoamiCommand(current),
		newRegisterCommand(current),
		newProfileCommand(current),
		newUsersCommand(current),
		newFarmsCommand(current),
		newFieldsCommand(current),
		newCropsCommand(current),
		newSensorsCommand(current),
		newSchedulesCommand(current),
		newPricesCommand(current),
		newGeocodeCommand(current),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%s\n\n%s", err.Error(), cmd.UsageString())
	})

	return root
}
