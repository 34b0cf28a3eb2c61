package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	goflags "github.com/jessevdk/go-flags"

	"github.com/frontsight/frontsight/internal/models"
	"github.com/frontsight/frontsight/internal/service"
	"github.com/frontsight/frontsight/internal/store"
)

// projectctl is the admin CLI for managing projects and their API keys
// directly against the database, without going through the HTTP API.

// GlobalFlags apply to every subcommand.
type GlobalFlags struct {
	DBURL string `long:"db" env:"DB_URL" default:"sqlite://monitoring.db" description:"Database URL (sqlite://path or postgres://...)"`
}

func (g *GlobalFlags) openService() (*service.ProjectService, *store.SQLStore, error) {
	st, err := store.Open(g.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := st.EnsureSchema(); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return service.NewProjectService(st), st, nil
}

// CreateCommand registers a new project and prints its API key.
type CreateCommand struct {
	globals     *GlobalFlags
	Name        string `long:"name" required:"true" description:"Project name"`
	Description string `long:"description" description:"Optional project description"`
}

func (c *CreateCommand) Execute(args []string) error {
	svc, st, err := c.globals.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	in := models.ProjectCreate{Name: c.Name}
	if c.Description != "" {
		in.Description = &c.Description
	}
	project, err := svc.Create(context.Background(), in)
	if err != nil {
		return err
	}
	fmt.Printf("created project %d %q\napi key: %s\n", project.ID, project.Name, project.APIKey)
	return nil
}

// ListCommand prints all projects, newest first.
type ListCommand struct {
	globals *GlobalFlags
}

func (c *ListCommand) Execute(args []string) error {
	svc, st, err := c.globals.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	projects, err := svc.List(context.Background())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAPI KEY\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.APIKey, p.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// GetCommand prints one project.
type GetCommand struct {
	globals *GlobalFlags
	ID      int64 `long:"id" required:"true" description:"Project id"`
}

func (c *GetCommand) Execute(args []string) error {
	svc, st, err := c.globals.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := svc.Get(context.Background(), c.ID)
	if err != nil {
		return err
	}
	description := ""
	if p.Description != nil {
		description = *p.Description
	}
	fmt.Printf("id: %d\nname: %s\ndescription: %s\napi key: %s\ncreated: %s\nupdated: %s\n",
		p.ID, p.Name, description, p.APIKey,
		p.CreatedAt.Format("2006-01-02 15:04:05"), p.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// RotateKeyCommand issues a fresh API key; the old key stops working.
type RotateKeyCommand struct {
	globals *GlobalFlags
	ID      int64 `long:"id" required:"true" description:"Project id"`
}

func (c *RotateKeyCommand) Execute(args []string) error {
	svc, st, err := c.globals.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := svc.RotateKey(context.Background(), c.ID)
	if err != nil {
		return err
	}
	fmt.Printf("rotated key for project %d\nnew api key: %s\n", p.ID, p.APIKey)
	return nil
}

// DeleteCommand removes a project and all of its events.
type DeleteCommand struct {
	globals *GlobalFlags
	ID      int64 `long:"id" required:"true" description:"Project id"`
}

func (c *DeleteCommand) Execute(args []string) error {
	svc, st, err := c.globals.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Printf("deleted project %d and its events\n", c.ID)
	return nil
}

func buildParser() *goflags.Parser {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "projectctl"
	parser.LongDescription = "Manage monitoring projects and their API keys."

	parser.AddCommand("create", "Create a project", "Register a new project and print its API key.", &CreateCommand{globals: &globals})
	parser.AddCommand("list", "List projects", "List all projects, newest first.", &ListCommand{globals: &globals})
	parser.AddCommand("get", "Show a project", "Show one project including its API key.", &GetCommand{globals: &globals})
	parser.AddCommand("rotate-key", "Rotate a project's API key", "Issue a fresh API key, invalidating the old one.", &RotateKeyCommand{globals: &globals})
	parser.AddCommand("delete", "Delete a project", "Delete a project and all of its events.", &DeleteCommand{globals: &globals})

	return parser
}

func main() {
	parser := buildParser()
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
