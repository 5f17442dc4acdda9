package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/medannot/medannot/internal/annotate"
	"github.com/medannot/medannot/internal/audio"
	"github.com/medannot/medannot/internal/config"
	"github.com/medannot/medannot/internal/draft"
	"github.com/medannot/medannot/internal/keyring"
	"github.com/medannot/medannot/internal/kv"
	"github.com/medannot/medannot/internal/logger"
	"github.com/medannot/medannot/internal/store"
	"github.com/medannot/medannot/internal/transcribe"
	"github.com/medannot/medannot/internal/tui"
	"github.com/medannot/medannot/internal/tui/workflow"
	"github.com/medannot/medannot/internal/wizard"
	"github.com/medannot/medannot/internal/workdir"
	"github.com/medannot/medannot/pkg/uictl"
)

// CLI defines the medannot command structure.
type CLI struct {
	Home string `flag:"" optional:"" env:"MEDANNOT_HOME" help:"MedAnnot home directory (default: ~/Documents/MedAnnot)"`

	// Default TUI command (runs when no subcommand given)
	Wizard WizardCmd `cmd:"" default:"withargs" help:"Launch the annotation wizard"`

	// Subcommands
	Patients    PatientsCmd    `cmd:"" help:"Manage patients"`
	Annotations AnnotationsCmd `cmd:"" help:"Browse saved annotations"`
	Draft       DraftCmd       `cmd:"" help:"Inspect the annotation in progress"`
	Import      ImportCmd      `cmd:"" help:"Check an audio file before a visit"`
	Template    TemplateCmd    `cmd:"" help:"Manage the annotation structure template"`
	Devices     DevicesCmd     `cmd:"" help:"List available audio devices"`
	Config      ConfigCmd      `cmd:"" help:"Manage configuration"`
}

// app is what every command needs: configuration, the home layout and the
// database.
type app struct {
	cfg    *config.Config
	layout workdir.Layout
	db     *store.DB
}

func (c *CLI) open(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	home := c.Home
	if home == "" {
		home = cfg.Home
	}

	layout, err := workdir.New(home)
	if err != nil {
		return nil, err
	}

	if err := layout.Prep(); err != nil {
		return nil, fmt.Errorf("failed to prepare home directory: %w", err)
	}

	db, err := store.Open(ctx, layout.DatabasePath())
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, layout: layout, db: db}, nil
}

func (a *app) drafts(session kv.Store) (*draft.Store, error) {
	dir, err := kv.NewDir(a.layout.DraftDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open draft directory: %w", err)
	}

	return draft.NewStore(dir, session), nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Debug("failed to close database", "error", err)
	}
}

// WizardCmd is the default command that runs the TUI.
type WizardCmd struct {
	MaxDuration time.Duration `flag:"" default:"30m" help:"Max recording duration"`
	Device      string        `flag:"" optional:"" env:"MEDANNOT_DEVICE" help:"Capture device name, or part of it (default: system microphone)"`
}

// Run executes the wizard command.
func (c *WizardCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// The terminal belongs to the TUI from here on.
	_, logFile, err := logger.SetupFileLogger(a.cfg, a.layout.LogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()

	openAIKey, openAISrc := keyring.OpenAI.Resolve(a.cfg.OpenAIAPIKey)
	anthropicKey, anthropicSrc := keyring.Anthropic.Resolve(a.cfg.AnthropicAPIKey)
	if openAISrc == keyring.Missing || anthropicSrc == keyring.Missing {
		slog.Warn("API keys missing; transcription or generation will fail",
			"openai", openAISrc, "anthropic", anthropicSrc)
	}

	// A process is one session: the restore prompt is offered once per launch.
	drafts, err := a.drafts(kv.NewMemory())
	if err != nil {
		return err
	}

	w := wizard.New(wizard.Deps{
		Drafts:      drafts,
		Transcriber: transcribe.New(openAIKey),
		Generator:   annotate.New(anthropicKey),
		Backend:     a.db,
		Examples:    a.cfg.ExampleCount,
	})

	session := &workflow.Session{
		Ctx:      ctx,
		Wizard:   w,
		Patients: a.db,
		Importer: audio.NewImporter(a.layout.RecordingsDir(), a.cfg.MaxUploadBytes),
		NewTake:  newTakeFunc(a.layout, c.Device, c.MaxDuration),
	}

	p := tea.NewProgram(tui.New(tui.Config{
		Cancel:  cancel,
		Session: session,
		Gate:    wizard.NewGate(drafts),
	}))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	if drafts.HasMeaningfulDraft(context.Background()) {
		fmt.Println("\nannotation en cours sauvegardée. à bientôt!")
	} else {
		fmt.Println("\nà bientôt!")
	}

	return nil
}

// newTakeFunc opens the microphone for each take.
func newTakeFunc(layout workdir.Layout, deviceName string, maxDuration time.Duration) workflow.TakeFunc {
	return func(ctx context.Context) (*workflow.Take, error) {
		name := "visite-" + time.Now().Format("20060102-150405") + ".mp3"

		devConf := audio.DefaultDeviceConfig()
		devConf.Name = deviceName

		capture, err := audio.StartCapture(ctx, audio.NewDevice(devConf), audio.CaptureConfig{
			SampleRate:  audio.DefaultSampleRate,
			Channels:    audio.DefaultChannels,
			MP3Path:     filepath.Join(layout.RecordingsDir(), name),
			MaxDuration: maxDuration,
		})
		if err != nil {
			return nil, err
		}

		return &workflow.Take{
			StartStopPause: audioDevKnob{ctx: ctx, dev: capture.Device()},
			Captured: uictl.Capped[int64](uictl.DialFunc[int64](func() int64 {
				return int64(capture.Recorder().Elapsed().Seconds())
			}), int64(maxDuration.Seconds())),
			Levels: capture.Meter(),
			Finish: func() (audio.Clip, error) {
				return capture.Finish(ctx)
			},
		}, nil
	}
}

// PatientsCmd groups patient subcommands.
type PatientsCmd struct {
	Add     PatientsAddCmd     `cmd:"" help:"Add a patient"`
	List    PatientsListCmd    `cmd:"" help:"List active patients"`
	Archive PatientsArchiveCmd `cmd:"" help:"Archive a patient"`
}

// PatientsAddCmd adds a patient.
type PatientsAddCmd struct {
	First       string   `flag:"" required:"" help:"First name"`
	Last        string   `flag:"" required:"" help:"Last name"`
	Birth       string   `flag:"" optional:"" help:"Birth date (YYYY-MM-DD)"`
	Pathologies []string `flag:"" name:"pathology" optional:"" help:"Known pathology (repeatable)"`
	Notes       string   `flag:"" optional:"" help:"Free-form notes"`
}

// Run executes the patients add command.
func (c *PatientsAddCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.db.CreatePatient(ctx, store.Patient{
		FirstName:   c.First,
		LastName:    c.Last,
		BirthDate:   c.Birth,
		Pathologies: c.Pathologies,
		Notes:       c.Notes,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\n", p.ID, p.FullName())

	return nil
}

// PatientsListCmd lists active patients.
type PatientsListCmd struct{}

// Run executes the patients list command.
func (c *PatientsListCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	patients, err := a.db.ListPatients(ctx)
	if err != nil {
		return err
	}

	if len(patients) == 0 {
		fmt.Println("no patients. add one with 'medannot patients add'")
		return nil
	}

	now := time.Now()
	for _, p := range patients {
		age := ""
		if n := p.Age(now); n > 0 {
			age = fmt.Sprintf("%d ans", n)
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", p.ID, p.FullName(), age, strings.Join(p.Pathologies, ", "))
	}

	return nil
}

// PatientsArchiveCmd hides a patient from the wizard.
type PatientsArchiveCmd struct {
	ID string `arg:"" required:"" help:"Patient ID"`
}

// Run executes the patients archive command.
func (c *PatientsArchiveCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.ArchivePatient(ctx, c.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no active patient %s", c.ID)
		}
		return err
	}

	fmt.Printf("patient %s archived\n", c.ID)

	return nil
}

// AnnotationsCmd groups annotation subcommands.
type AnnotationsCmd struct {
	List AnnotationsListCmd `cmd:"" help:"List saved annotations for a patient"`
}

// AnnotationsListCmd prints recent annotations, newest first.
type AnnotationsListCmd struct {
	Patient string `flag:"" required:"" help:"Patient ID"`
	Limit   int    `flag:"" default:"10" help:"How many annotations to show"`
	Full    bool   `flag:"" help:"Print the annotation text"`
}

// Run executes the annotations list command.
func (c *AnnotationsListCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	annotations, err := a.db.ListAnnotations(ctx, c.Patient, c.Limit)
	if err != nil {
		return err
	}

	for _, an := range annotations {
		fmt.Printf("%s %s\t%s\n", an.VisitDate, an.VisitTime, an.ID)
		if c.Full {
			fmt.Printf("%s\n\n", an.Content)
		}
	}

	return nil
}

// DraftCmd groups draft subcommands.
type DraftCmd struct {
	Show  DraftShowCmd  `cmd:"" help:"Print the stored draft as JSON"`
	Clear DraftClearCmd `cmd:"" help:"Delete the stored draft"`
}

// DraftShowCmd prints the stored draft.
type DraftShowCmd struct{}

// Run executes the draft show command.
func (c *DraftShowCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	drafts, err := a.drafts(kv.NewMemory())
	if err != nil {
		return err
	}

	rec, ok := drafts.Load(ctx)
	if !ok {
		fmt.Println("no draft")
		return nil
	}

	return printJSON(os.Stdout, rec)
}

// DraftClearCmd deletes the stored draft.
type DraftClearCmd struct{}

// Run executes the draft clear command.
func (c *DraftClearCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	drafts, err := a.drafts(kv.NewMemory())
	if err != nil {
		return err
	}

	drafts.Clear(ctx)
	fmt.Println("draft cleared")

	return nil
}

// ImportCmd validates an audio file the way the wizard would.
type ImportCmd struct {
	File string `arg:"" required:"" type:"existingfile" help:"Audio file"`
}

// Run executes the import command.
func (c *ImportCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	clip, err := audio.NewImporter(a.layout.RecordingsDir(), a.cfg.MaxUploadBytes).ImportFile(c.File)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%ds\n", clip.Path, clip.Seconds())

	return nil
}

// TemplateCmd groups template subcommands.
type TemplateCmd struct {
	Show TemplateShowCmd `cmd:"" help:"Print the structure template"`
	Set  TemplateSetCmd  `cmd:"" help:"Replace the structure template"`
}

// TemplateShowCmd prints the active template.
type TemplateShowCmd struct{}

// Run executes the template show command.
func (c *TemplateShowCmd) Run(cli *CLI) error {
	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	template, err := a.db.StructureTemplate(ctx)
	if err != nil {
		return err
	}

	if template == "" {
		template = annotate.DefaultTemplate
	}
	fmt.Println(template)

	return nil
}

// TemplateSetCmd replaces the template from a file.
type TemplateSetCmd struct {
	File  string `arg:"" optional:"" type:"existingfile" help:"Template file"`
	Reset bool   `flag:"" help:"Restore the default template"`
}

// Run executes the template set command.
func (c *TemplateSetCmd) Run(cli *CLI) error {
	var template string

	switch {
	case c.Reset:
	case c.File == "":
		return errors.New("give a template file or --reset")
	default:
		data, err := os.ReadFile(c.File)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		template = strings.TrimSpace(string(data))
		if template == "" {
			return errors.New("template file is empty; use --reset to restore the default")
		}
	}

	ctx := context.Background()

	a, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.SetStructureTemplate(ctx, template); err != nil {
		return err
	}

	fmt.Println("template saved")

	return nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	devices, err := audio.NewDevice(nil).EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	return printJSON(os.Stdout, devices)
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey    SetKeyCmd    `cmd:"" help:"Store an API key in system keychain"`
	DeleteKey DeleteKeyCmd `cmd:"" name:"delete-key" help:"Remove an API key from system keychain"`
	ListKeys  ListKeysCmd  `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic" help:"Service name (openai or anthropic)"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	key, err := keyring.Lookup(c.Service)
	if err != nil {
		return err
	}

	if err := key.Set(c.Secret); err != nil {
		return err
	}

	fmt.Printf("%s API key stored in keychain\n", key.Service)

	return nil
}

// DeleteKeyCmd removes an API key from the system keychain.
type DeleteKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic" help:"Service name (openai or anthropic)"`
}

// Run executes the delete-key command.
func (c *DeleteKeyCmd) Run() error {
	key, err := keyring.Lookup(c.Service)
	if err != nil {
		return err
	}

	if err := key.Delete(); err != nil {
		return err
	}

	fmt.Printf("%s API key removed from keychain\n", key.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured and where they come from.
type ListKeysCmd struct{}

// Run executes the list-keys command.
func (c *ListKeysCmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	env := map[keyring.Key]string{
		keyring.OpenAI:    cfg.OpenAIAPIKey,
		keyring.Anthropic: cfg.AnthropicAPIKey,
	}

	missing := false
	for _, key := range keyring.Keys() {
		_, src := key.Resolve(env[key])
		fmt.Printf("%s (%s): %s\n", key.Service, key.Purpose, src)
		missing = missing || src == keyring.Missing
	}

	if missing {
		fmt.Println("\nRun 'medannot config set-key <service> <key>' or set the environment variable.")
	}

	return nil
}

func main() {
	// Set up text-based logger for CLI output
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("medannot"),
		kong.Description("Dictate, transcribe and annotate home-care visits."),
		kong.Bind(cli),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

type audioDevKnob struct {
	ctx context.Context
	dev audio.Device
}

func (adk audioDevKnob) Read() bool {
	return adk.dev.IsStarted()
}

func (adk audioDevKnob) On() {
	err := adk.dev.Start(adk.ctx)
	if err != nil {
		slog.Error("audioDevKnob On error", "error", err)
	}
}

func (adk audioDevKnob) Off() {
	err := adk.dev.Stop(adk.ctx)
	if err != nil {
		slog.Error("audioDevKnob Off error", "error", err)
	}
}

func (adk audioDevKnob) Toggle() {
	err := adk.dev.Toggle(adk.ctx)
	if err != nil {
		slog.Error("audioDevKnob Toggle error", "error", err)
	}
}
