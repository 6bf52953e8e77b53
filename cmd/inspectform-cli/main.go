// Command inspectform-cli runs the field inspection wizard in the terminal.
// It walks the visible stages in order, prompting for each field, saving
// drafts locally as answers come in, and submitting each stage to the remote
// service when one is configured.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/joho/godotenv"

	inspectform "github.com/harvestry/go-inspectform"
	"github.com/harvestry/go-inspectform/internal/config"
	"github.com/harvestry/go-inspectform/pkg/controller"
	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	requestID := flag.String("request", "", "resume an existing inspection request")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	// A local .env is a developer convenience; absence is fine.
	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(context.Background(), *configPath, *requestID, logger); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			fmt.Fprintln(os.Stderr, "aborted; drafts are kept")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "inspectform:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, requestID string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	opts := []inspectform.Option{
		inspectform.WithStorePath(cfg.Store.Path),
		inspectform.WithLogger(logger),
		inspectform.WithDebounce(cfg.Draft.Debounce),
	}
	if cfg.Sync.BaseURL != "" {
		opts = append(opts,
			inspectform.WithSyncBaseURL(cfg.Sync.BaseURL),
			inspectform.WithHTTPClient(&http.Client{Timeout: cfg.Sync.Timeout}),
		)
	}

	eng, err := inspectform.New(opts...)
	if err != nil {
		return err
	}
	defer eng.Close()

	if requestID == "" {
		requestID = inspectform.NewRequestID()
		fmt.Printf("New inspection request %s\n", requestID)
	} else {
		fmt.Printf("Resuming inspection request %s\n", requestID)
	}

	nav, err := eng.Navigator(requestID)
	if err != nil {
		return err
	}

	for {
		stage, err := nav.Active(ctx)
		if err != nil {
			return err
		}
		ind, err := nav.Indicator(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\n== %s (%d/%d) ==\n", stage.Title, ind.Position, ind.Total)

		if err := runStage(ctx, eng, requestID, stage); err != nil {
			return err
		}

		if _, ok, err := nav.Advance(ctx); err != nil {
			return err
		} else if !ok {
			break
		}
	}

	done := false
	if err := survey.AskOne(&survey.Confirm{
		Message: "All stages saved. Close out this inspection and clear local drafts?",
	}, &done); err != nil {
		return err
	}
	if done {
		if err := nav.Complete(ctx); err != nil {
			return err
		}
		fmt.Println("Inspection complete.")
	} else {
		fmt.Println("Drafts kept; resume later with -request", requestID)
	}
	return nil
}

// runStage prompts for every field of one stage, re-prompting until the
// stage validates, then submits it.
func runStage(ctx context.Context, eng *inspectform.Engine, requestID string, stage schema.StageDefinition) error {
	ctrl, err := eng.Stage(requestID, stage.ID)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	if ctrl.Draft().ExistsRemotely {
		fmt.Println("(loaded previously submitted answers)")
	}

	for {
		for _, field := range stage.Fields {
			if skipField(ctrl, stage, field) {
				continue
			}
			raw, err := promptField(field, ctrl.Draft().Values[field.Key])
			if err != nil {
				return err
			}
			if raw == nil {
				continue
			}
			if err := ctrl.Edit(field.Key, raw); err != nil {
				return err
			}
			if msg, bad := ctrl.Errors()[field.Key]; bad {
				fmt.Printf("  ! %s\n", msg)
			}
		}

		res, err := ctrl.Submit(ctx)
		if err != nil {
			return err
		}
		if len(res.Errors) > 0 {
			fmt.Println("Please fix the following before continuing:")
			for _, fe := range res.Errors {
				fmt.Printf("  - %s: %s\n", fieldLabel(stage, fe.Key), fe.Message)
			}
			continue
		}
		if res.LocalOnly {
			fmt.Println("(saved locally only; the remote service was unreachable)")
		}
		return nil
	}
}

// skipField hides companion and conditional fields whose gate is currently
// closed, mirroring what the controller would clear anyway.
func skipField(ctrl *controller.Controller, stage schema.StageDefinition, field schema.FieldDefinition) bool {
	values := ctrl.Draft().Values

	// Companion of a multi-select "Other" choice.
	for _, sib := range stage.Fields {
		if sib.OtherKey != field.Key {
			continue
		}
		selected, _ := values[sib.Key].([]string)
		for _, s := range selected {
			if s == sib.OtherOption {
				return false
			}
		}
		return true
	}

	// Dependent of a tripleState gate answered No or not yet answered.
	for _, sib := range stage.Fields {
		for _, dep := range sib.ClearsOnNo {
			if dep != field.Key {
				continue
			}
			v, _ := values[sib.Key].(string)
			return triplestate.Value(v) != triplestate.Yes
		}
	}
	return false
}

func promptField(field schema.FieldDefinition, current any) (any, error) {
	switch field.Type {
	case schema.TypeTripleState:
		choice := ""
		prompt := &survey.Select{
			Message: field.DisplayLabel() + "?",
			Options: []string{string(triplestate.Yes), string(triplestate.No)},
		}
		if cur, ok := current.(string); ok && cur != "" {
			prompt.Default = cur
		}
		if err := survey.AskOne(prompt, &choice); err != nil {
			return nil, err
		}
		return choice, nil

	case schema.TypeMultiSelect:
		var choices []string
		prompt := &survey.MultiSelect{
			Message: field.DisplayLabel(),
			Options: field.Options,
		}
		if cur, ok := current.([]string); ok && len(cur) > 0 {
			prompt.Default = cur
		}
		if err := survey.AskOne(prompt, &choices); err != nil {
			return nil, err
		}
		return choices, nil

	case schema.TypeFreeText:
		out := ""
		prompt := &survey.Multiline{Message: field.DisplayLabel()}
		if cur, ok := current.(string); ok {
			prompt.Default = cur
		}
		if err := survey.AskOne(prompt, &out); err != nil {
			return nil, err
		}
		return out, nil

	case schema.TypeGeoPoint:
		out := ""
		if err := survey.AskOne(&survey.Input{
			Message: field.DisplayLabel() + " (lat,lng)",
			Help:    "e.g. -1.2921,36.8219; leave blank to capture later",
		}, &out); err != nil {
			return nil, err
		}
		return parseGeoInput(out)

	case schema.TypeImageList:
		out := ""
		if err := survey.AskOne(&survey.Input{
			Message: field.DisplayLabel() + " (comma-separated file paths or URLs)",
		}, &out); err != nil {
			return nil, err
		}
		return splitRefs(out), nil

	default:
		out := ""
		prompt := &survey.Input{Message: field.DisplayLabel()}
		if cur, ok := current.(string); ok {
			prompt.Default = cur
		}
		if err := survey.AskOne(prompt, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func parseGeoInput(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return raw, nil // let validation report the malformed value
	}
	var lat, lng float64
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%f", &lat); err != nil {
		return raw, nil
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%f", &lng); err != nil {
		return raw, nil
	}
	return draft.GeoPoint{Lat: lat, Lng: lng}, nil
}

func splitRefs(raw string) []string {
	var refs []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			refs = append(refs, p)
		}
	}
	return refs
}

func fieldLabel(stage schema.StageDefinition, key string) string {
	if f, ok := stage.Field(key); ok {
		return f.DisplayLabel()
	}
	return key
}
