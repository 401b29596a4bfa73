package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/civictickets/internal/client"
	"github.com/example/civictickets/internal/models"
)

const timeLayout = "2006-01-02 15:04"

func printTickets(out io.Writer, views []client.TicketView) {
	if len(views) == 0 {
		fmt.Fprintln(out, "no tickets")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tASSIGNED TO\tCREATED\tACTIONS")
	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Status, v.Title, orDash(v.AssignedCompanyName), v.CreatedAt.Local().Format(timeLayout), actions(v.Actions))
	}
	_ = w.Flush()
}

func printTicket(out io.Writer, v client.TicketView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", v.ID)
	fmt.Fprintf(w, "Title:\t%s\n", v.Title)
	fmt.Fprintf(w, "Status:\t%s\n", v.Status)
	fmt.Fprintf(w, "Address:\t%s\n", v.Address)
	fmt.Fprintf(w, "Reported by:\t%s <%s>\n", v.UserName, v.UserEmail)
	fmt.Fprintf(w, "Assigned to:\t%s\n", orDash(v.AssignedCompanyName))
	if v.ImageURL != nil {
		fmt.Fprintf(w, "Image:\t%s\n", *v.ImageURL)
	}
	fmt.Fprintf(w, "Created:\t%s\n", v.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "Updated:\t%s\n", v.UpdatedAt.Local().Format(timeLayout))
	if v.Feedback != "" {
		fmt.Fprintf(w, "Feedback:\t%s\n", v.Feedback)
	}
	fmt.Fprintf(w, "Actions:\t%s\n", actions(v.Actions))
	_ = w.Flush()
	fmt.Fprintf(out, "\n%s\n", v.Description)
}

func printEvents(out io.Writer, events []models.TicketEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "no history recorded")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tEVENT\tSTATUS\tACTOR")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.OccurredAt.Local().Format(time.RFC3339), e.Event, e.Status, e.ActorID)
	}
	_ = w.Flush()
}

func actions(list []models.Action) string {
	if len(list) == 0 {
		return "-"
	}
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.String()
	}
	return strings.Join(names, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
