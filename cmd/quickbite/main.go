package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/quickbite/api/internal/checkout"
	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/dashboard"
	"github.com/quickbite/api/internal/enum"
)

func main() {
	app := &cli.App{
		Name:  "quickbite",
		Usage: "place and manage QuickBite orders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:8081",
				Usage:   "API base URL",
				EnvVars: []string{"QUICKBITE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token for staff commands",
				EnvVars: []string{"QUICKBITE_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			level, err := log.ParseLevel(c.String("log-level"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid log level %q", c.String("log-level")), 2)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			loginCommand(),
			orderCommand(),
			listCommand(),
			statusCommand(),
			dashboardCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func apiClient(c *cli.Context) *client.Client {
	api := client.New(c.String("api"))
	if tok := c.String("token"); tok != "" {
		api = api.WithToken(tok)
	}
	return api
}

func locationFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "location",
		Aliases:  []string{"l"},
		Usage:    "medical or bitbites",
		Required: true,
		EnvVars:  []string{"QUICKBITE_LOCATION"},
	}
}

func parseLocation(c *cli.Context) (enum.Location, error) {
	loc, err := enum.ParseLocation(c.String("location"))
	if err != nil {
		return "", cli.Exit(err.Error(), 2)
	}
	return loc, nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and print a bearer token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"QUICKBITE_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			session, err := apiClient(c).Login(c.Context, c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "signed in as %s (%s)\n", session.User.Name, session.User.Role)
			if session.User.Location != nil {
				fmt.Fprintf(c.App.Writer, "location: %s\n", session.User.Location.DisplayName())
			}
			fmt.Fprintf(c.App.Writer, "export QUICKBITE_TOKEN=%s\n", session.Token)
			return nil
		},
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:      "order",
		Usage:     "place an order",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			locationFlag(),
			&cli.StringFlag{Name: "name", Usage: "name the order is placed under"},
			&cli.StringFlag{Name: "table", Usage: "optional table number"},
			&cli.StringSliceFlag{
				Name:     "item",
				Aliases:  []string{"i"},
				Usage:    "productId:name:unitPrice[:quantity], repeatable",
				Required: true,
			},
			&cli.StringFlag{Name: "email", Usage: "sign in to order under your profile"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"QUICKBITE_PASSWORD"}},
		},
		Action: func(c *cli.Context) error {
			loc, err := parseLocation(c)
			if err != nil {
				return err
			}
			cart := checkout.NewCart(loc)
			for _, spec := range c.StringSlice("item") {
				item, err := parseItem(spec)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				if err := cart.Add(item); err != nil {
					return cli.Exit(fmt.Sprintf("item %q: %v", spec, err), 2)
				}
			}

			api := apiClient(c)
			var identity *checkout.Identity
			if email := c.String("email"); email != "" {
				session, err := api.Login(c.Context, email, c.String("password"))
				if err != nil {
					return err
				}
				api = api.WithToken(session.Token)
				profile := session.User
				identity = &checkout.Identity{UserID: profile.ID, Token: session.Token, Profile: &profile}
			}

			co, err := checkout.New(client.NewOrders(api, 0), cart, identity)
			if err != nil {
				return err
			}
			if name := c.String("name"); name != "" {
				if err := co.SetName(name); err != nil && !errors.Is(err, checkout.ErrNameLocked) {
					return err
				}
			}
			co.SetTable(c.String("table"))

			conf, err := co.Submit(c.Context)
			if err != nil {
				return err
			}
			printConfirmation(c.App.Writer, conf)
			return nil
		},
	}
}

func printConfirmation(w io.Writer, conf *checkout.Confirmation) {
	o := conf.Order
	fmt.Fprintf(w, "Order placed! Your token is %s\n", o.Token)
	fmt.Fprintf(w, "  pickup:  %s\n", conf.Location())
	fmt.Fprintf(w, "  name:    %s\n", o.ClientName)
	for _, it := range o.Items {
		fmt.Fprintf(w, "  %dx %-20s %8s\n", it.Quantity, it.Name, it.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(w, "  total:   %s\n", o.TotalAmount.StringFixed(2))
	fmt.Fprintf(w, "  status:  %s\n", o.Status)
	fmt.Fprintf(w, "  placed:  %s\n", o.CreatedAt.Local().Format(time.RFC1123))
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list a location's orders",
		Flags: []cli.Flag{
			locationFlag(),
			&cli.StringFlag{Name: "filter", Value: string(dashboard.FilterAll), Usage: "all, pending, preparing or ready"},
		},
		Action: func(c *cli.Context) error {
			loc, err := parseLocation(c)
			if err != nil {
				return err
			}
			filter, err := dashboard.ParseFilter(c.String("filter"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			orders, err := apiClient(c).ListByLocation(c.Context, loc)
			if err != nil {
				return err
			}
			counts := dashboard.Count(orders)
			fmt.Fprintf(c.App.Writer, "%s: %d pending, %d preparing, %d ready\n", loc.DisplayName(),
				counts[enum.OrderStatusPending], counts[enum.OrderStatusPreparing], counts[enum.OrderStatusReady])
			for _, o := range dashboard.Apply(orders, filter) {
				fmt.Fprintf(c.App.Writer, "%s  %s\n", o.ID, o)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "set an order's status",
		ArgsUsage: "<order-id> <pending|preparing|ready|completed>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: quickbite status <order-id> <status>", 2)
			}
			id, err := uuid.Parse(c.Args().Get(0))
			if err != nil {
				return cli.Exit("invalid order id", 2)
			}
			// sent as given; the server validates the value
			order, err := apiClient(c).UpdateStatus(c.Context, id, enum.OrderStatus(c.Args().Get(1)))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, order)
			return nil
		},
	}
}

func dashboardCommand() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "live staff dashboard for a location",
		Flags: []cli.Flag{
			locationFlag(),
			&cli.DurationFlag{
				Name:    "poll-interval",
				Value:   client.DefaultPollInterval,
				EnvVars: []string{"QUICKBITE_POLL_INTERVAL"},
			},
			&cli.BoolFlag{Name: "no-push", Usage: "disable websocket updates"},
			&cli.StringFlag{Name: "log-file", Value: os.DevNull, Usage: "where to write logs while the UI runs"},
		},
		Action: func(c *cli.Context) error {
			loc, err := parseLocation(c)
			if err != nil {
				return err
			}

			// the UI owns the terminal
			logFile, err := os.OpenFile(c.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return errors.Wrap(err, "open log file")
			}
			defer logFile.Close()
			log.SetOutput(logFile)

			api := apiClient(c)
			orders := client.NewOrders(api, c.Duration("poll-interval"))
			var opts []dashboard.Option
			if !c.Bool("no-push") && api.Token() != "" {
				opts = append(opts, dashboard.WithSubscriber(api))
			}
			dash := dashboard.New(orders, loc, opts...)

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			updates := make(chan struct{}, 1)
			go dash.Run(ctx, func() {
				select {
				case updates <- struct{}{}:
				default:
				}
			})

			program := tea.NewProgram(dashboard.NewModel(ctx, dash, updates), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = program.Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
