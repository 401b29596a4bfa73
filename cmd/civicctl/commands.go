package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/example/civictickets/internal/authz"
	"github.com/example/civictickets/internal/client"
	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/workflow"
)

type command struct {
	name    string
	usage   string
	summary string
	// route is the front-end page the command belongs to; the route guard
	// decides whether the current session may use it.
	route func(args []string) string
	run   func(ctx context.Context, app *client.App, out io.Writer, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "login", usage: "login --email E --password P", summary: "sign in",
			route: fixed(authz.RouteLogin), run: cmdLogin},
		{name: "logout", usage: "logout", summary: "sign out", run: cmdLogout},
		{name: "register", usage: "register --name N --email E --password P ...", summary: "create an account",
			route: fixed(authz.RouteRegister), run: cmdRegister},
		{name: "whoami", usage: "whoami", summary: "show the signed-in principal", run: cmdWhoami},
		{name: "list", usage: "list [--status S]", summary: "dashboard tickets",
			route: fixed(authz.RouteDashboard), run: cmdList},
		{name: "available", usage: "available", summary: "open tickets nobody has claimed",
			route: fixed(authz.RouteDashboard), run: cmdAvailable},
		{name: "assigned", usage: "assigned [--status S]", summary: "tickets held by your organization",
			route: fixed(authz.RouteDashboard), run: cmdAssigned},
		{name: "show", usage: "show <id>", summary: "ticket details",
			route: ticketRoute, run: cmdShow},
		{name: "history", usage: "history <id>", summary: "ticket event history",
			route: ticketRoute, run: cmdHistory},
		{name: "create", usage: "create --title T --description D --address A", summary: "report a problem",
			route: fixed(authz.RouteCreateTicket), run: cmdCreate},
		{name: "assign", usage: "assign <id>", summary: "claim an open ticket",
			route: ticketRoute, run: ticketAction(func(ctx context.Context, app *client.App, id uuid.UUID, _ []string) (client.TicketView, error) {
				return app.Assign(ctx, id)
			})},
		{name: "complete", usage: "complete <id>", summary: "mark a ticket as resolved",
			route: ticketRoute, run: ticketAction(func(ctx context.Context, app *client.App, id uuid.UUID, _ []string) (client.TicketView, error) {
				return app.Complete(ctx, id)
			})},
		{name: "feedback", usage: "feedback <id> <text>", summary: "rate the resolution of your ticket",
			route: ticketRoute, run: ticketAction(func(ctx context.Context, app *client.App, id uuid.UUID, rest []string) (client.TicketView, error) {
				return app.Feedback(ctx, id, strings.Join(rest, " "))
			})},
		{name: "status", usage: "status <id> <status> [--org ID]", summary: "force a status (admin)",
			route: ticketRouteAfterFlags(func() *pflag.FlagSet { fs, _ := statusFlags(); return fs }), run: cmdStatus},
	}
}

func fixed(path string) func([]string) string {
	return func([]string) string { return path }
}

func ticketRoute(args []string) string {
	if len(args) == 0 {
		return authz.RouteDashboard
	}
	return authz.RouteTicketPrefix + args[0]
}

// ticketRouteAfterFlags routes on the first positional argument left once
// the command's flags are parsed.
func ticketRouteAfterFlags(flags func() *pflag.FlagSet) func([]string) string {
	return func(args []string) string {
		fs := flags()
		fs.SetOutput(io.Discard)
		if err := fs.Parse(args); err != nil {
			return authz.RouteDashboard
		}
		return ticketRoute(fs.Args())
	}
}

func dispatch(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		rest := args[1:]
		if cmd.route != nil {
			want := cmd.route(rest)
			if got, ok := app.Navigate(want); !ok {
				return redirectError(want, got)
			}
		}
		err := cmd.run(ctx, app, out, rest)
		if msg, ok := app.Flash(); ok {
			fmt.Fprintln(out, msg.Text)
		}
		return err
	}
	return errors.Errorf("unknown command %q", args[0])
}

func redirectError(want, got string) error {
	switch {
	case (want == authz.RouteLogin || want == authz.RouteRegister) && got == authz.RouteDashboard:
		return errors.New("already signed in, run logout first")
	case got == authz.RouteLogin:
		return errors.Wrap(models.ErrUnauthorized, "sign in first")
	case got == authz.RouteDashboard:
		return errors.Wrap(models.ErrForbidden, "not available for your account")
	}
	return errors.New("unknown page")
}

// shell runs commands line by line against one backend, which keeps the
// mock store alive between commands.
func shell(ctx context.Context, app *client.App, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		args, err := splitArgs(scanner.Text())
		switch {
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		case len(args) == 0:
		case args[0] == "exit" || args[0] == "quit":
			return nil
		default:
			if err := dispatch(ctx, app, out, args); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return errors.Wrap(scanner.Err(), "read commands")
}

// splitArgs splits a shell line on spaces, keeping double-quoted text together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}

func cmdLogin(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := app.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s (%s)\n", p.Name, p.Role)
	return nil
}

func cmdLogout(_ context.Context, app *client.App, out io.Writer, _ []string) error {
	if err := app.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed out")
	return nil
}

func cmdRegister(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	var req client.RegisterRequest
	var docType string
	fs.StringVar(&req.Name, "name", "", "full name or company name")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.Password, "password", "", "password")
	fs.StringVar(&req.ConfirmPassword, "confirm-password", "", "password again")
	fs.StringVar(&req.Document, "document", "", "CPF (11 digits) or CNPJ (14 digits)")
	fs.StringVar(&docType, "type", string(models.DocumentIndividual), "individual or organization")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req.DocumentType = models.DocumentType(docType)
	p, err := app.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "registered %s as %s\n", p.Email, p.Role)
	return nil
}

func cmdWhoami(_ context.Context, app *client.App, out io.Writer, _ []string) error {
	caps := app.Capabilities()
	if !caps.Authenticated {
		fmt.Fprintln(out, "not signed in")
		return nil
	}
	fmt.Fprintf(out, "%s\t%s\n", caps.PrincipalID(), caps.Role())
	return nil
}

func statusFlag(fs *pflag.FlagSet) func() (*models.TicketStatus, error) {
	raw := fs.String("status", "", "aberto, em andamento or resolvido")
	return func() (*models.TicketStatus, error) {
		if *raw == "" {
			return nil, nil
		}
		s, err := models.ParseTicketStatus(*raw)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}
}

func cmdList(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	status := statusFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := status()
	if err != nil {
		return err
	}
	views, err := app.Dashboard(ctx, s)
	if err != nil {
		return err
	}
	printTickets(out, views)
	return nil
}

func cmdAvailable(ctx context.Context, app *client.App, out io.Writer, _ []string) error {
	views, err := app.Available(ctx)
	if err != nil {
		return err
	}
	printTickets(out, views)
	return nil
}

func cmdAssigned(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("assigned", pflag.ContinueOnError)
	status := statusFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := status()
	if err != nil {
		return err
	}
	views, err := app.Assigned(ctx, s)
	if err != nil {
		return err
	}
	printTickets(out, views)
	return nil
}

func parseID(args []string) (uuid.UUID, error) {
	if len(args) == 0 {
		return uuid.Nil, models.NewValidationError("id", "is required")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, models.NewValidationError("id", "must be a UUID")
	}
	return id, nil
}

func cmdShow(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	view, err := app.Ticket(ctx, id)
	if err != nil {
		return err
	}
	printTicket(out, view)
	return nil
}

func cmdHistory(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	events, err := app.History(ctx, id)
	if err != nil {
		return err
	}
	printEvents(out, events)
	return nil
}

func cmdCreate(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	var in workflow.CreateInput
	var image string
	fs.StringVar(&in.Title, "title", "", "short title")
	fs.StringVar(&in.Description, "description", "", "what is wrong")
	fs.StringVar(&in.Address, "address", "", "where it is")
	fs.StringVar(&image, "image-url", "", "URL of an uploaded photo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if image != "" {
		in.ImageURL = &image
	}
	view, err := app.Create(ctx, in)
	if err != nil {
		return err
	}
	printTicket(out, view)
	return nil
}

func statusFlags() (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	org := fs.String("org", "", "organization to hold the ticket")
	return fs, org
}

func cmdStatus(ctx context.Context, app *client.App, out io.Writer, args []string) error {
	fs, org := statusFlags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	id, err := parseID(rest)
	if err != nil {
		return err
	}
	if len(rest) < 2 {
		return models.NewValidationError("status", "is required")
	}
	status, err := models.ParseTicketStatus(strings.Join(rest[1:], " "))
	if err != nil {
		return err
	}
	var orgID *uuid.UUID
	if *org != "" {
		parsed, err := uuid.Parse(*org)
		if err != nil {
			return models.NewValidationError("org", "must be a UUID")
		}
		orgID = &parsed
	}
	view, err := app.Override(ctx, id, status, orgID)
	if err != nil {
		return err
	}
	printTicket(out, view)
	return nil
}

func ticketAction(do func(ctx context.Context, app *client.App, id uuid.UUID, rest []string) (client.TicketView, error)) func(context.Context, *client.App, io.Writer, []string) error {
	return func(ctx context.Context, app *client.App, out io.Writer, args []string) error {
		id, err := parseID(args)
		if err != nil {
			return err
		}
		view, err := do(ctx, app, id, args[1:])
		if err != nil {
			return err
		}
		printTicket(out, view)
		return nil
	}
}
