package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/models"
)

type principalCreator interface {
	Create(ctx context.Context, p *models.Principal) error
}

type ticketCreator interface {
	Create(ctx context.Context, ticket *models.Ticket) error
}

var demoNamespace = uuid.MustParse("6f1c1b8e-3a52-4bde-9a43-2a4f0d1c9e77")

// Demo principals. Their ids are stable so seeded sessions survive restarts.
var (
	DemoAdminID        = uuid.NewSHA1(demoNamespace, []byte("admin@example.com"))
	DemoOrganizationID = uuid.NewSHA1(demoNamespace, []byte("prefeitura@example.com"))
	DemoCitizenID      = uuid.NewSHA1(demoNamespace, []byte("usuario@example.com"))
)

// DemoPrincipals returns the demonstration accounts.
func DemoPrincipals(passwordHash string) []models.Principal {
	return []models.Principal{
		{ID: DemoAdminID, Name: "Admin Teste", Email: "admin@example.com", Document: "00000000000",
			DocumentType: models.DocumentIndividual, Role: models.RoleAdmin, PasswordHash: passwordHash},
		{ID: DemoOrganizationID, Name: "Prefeitura Teste", Email: "prefeitura@example.com", Document: "00000000000000",
			DocumentType: models.DocumentOrganization, Role: models.RoleOrganization, PasswordHash: passwordHash},
		{ID: DemoCitizenID, Name: "Usuário Comum", Email: "usuario@example.com", Document: "12345678900",
			DocumentType: models.DocumentIndividual, Role: models.RoleCitizen, PasswordHash: passwordHash},
	}
}

func demoTime(value string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05", value)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// DemoTickets returns the demonstration tickets, all filed by the demo citizen.
func DemoTickets() []models.Ticket {
	org := DemoOrganizationID
	ticket := func(key, title, description, address string, status models.TicketStatus, created, updated string) models.Ticket {
		t := models.Ticket{
			ID:          uuid.NewSHA1(demoNamespace, []byte(key)),
			Title:       title,
			Description: description,
			Address:     address,
			UserID:      DemoCitizenID,
			UserName:    "Usuário Comum",
			UserEmail:   "usuario@example.com",
			Status:      status,
			CreatedAt:   demoTime(created),
			UpdatedAt:   demoTime(updated),
		}
		if status.RequiresAssignee() {
			id := org
			t.AssignedCompanyID = &id
			t.AssignedCompanyName = "Prefeitura Teste"
		}
		return t
	}
	return []models.Ticket{
		ticket("ticket-1", "Buraco na calçada",
			"Existe um buraco grande na calçada que está causando acidentes com pedestres.",
			"Rua das Flores, 123 - Centro", models.TicketStatusOpen, "2025-05-15T10:30:00", "2025-05-15T10:30:00"),
		ticket("ticket-2", "Poste com lâmpada queimada",
			"A lâmpada do poste da esquina está queimada há mais de uma semana, deixando a rua escura durante a noite.",
			"Avenida Principal, 500 - Jardim Europa", models.TicketStatusInProgress, "2025-05-14T15:45:00", "2025-05-16T09:20:00"),
		ticket("ticket-3", "Vazamento de água",
			"Há um vazamento de água na rua que está causando desperdício e formando uma poça grande.",
			"Rua dos Ipês, 78 - Jardim Botânico", models.TicketStatusResolved, "2025-05-10T08:15:00", "2025-05-17T14:30:00"),
		ticket("ticket-4", "Lixo acumulado",
			"Lixo acumulado na esquina da rua há vários dias sem coleta.",
			"Rua das Acácias, 45 - Vila Nova", models.TicketStatusOpen, "2025-05-18T11:20:00", "2025-05-18T11:20:00"),
		ticket("ticket-5", "Semáforo com defeito",
			"O semáforo da avenida principal com a rua lateral está piscando em amarelo continuamente.",
			"Avenida Brasil com Rua Rio Branco - Centro", models.TicketStatusInProgress, "2025-05-16T09:10:00", "2025-05-17T10:45:00"),
	}
}

// Seed loads the demonstration data. Records that already exist are kept.
func Seed(ctx context.Context, users principalCreator, tickets ticketCreator, passwordHash string) error {
	for _, p := range DemoPrincipals(passwordHash) {
		p := p
		if err := users.Create(ctx, &p); err != nil && !errors.Is(err, models.ErrAlreadyExists) {
			return errors.Wrapf(err, "seed principal %s", p.Email)
		}
	}
	for _, t := range DemoTickets() {
		t := t
		if err := tickets.Create(ctx, &t); err != nil && !errors.Is(err, models.ErrAlreadyExists) {
			return errors.Wrapf(err, "seed ticket %s", t.Title)
		}
	}
	return nil
}
