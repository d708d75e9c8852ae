// Command bootsim runs the boot stage against a simulated processor and
// prints the resulting text console.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"peluboot/kernel"
	"peluboot/kernel/cpu/sim"
	"peluboot/kernel/kmain/simboot"
	"peluboot/kernel/mem/vmm"
	"peluboot/kernel/multiboot"

	"golang.org/x/term"
)

type options struct {
	profile    string
	magic      uint
	info       uint
	order      string
	image      string
	screenshot string
	verbose    bool
}

// run boots a simulated machine described by opts. It returns false if the
// boot stage did not reach long mode.
func run(opts options, logger *slog.Logger) (bool, error) {
	profile := defaultProfile()
	if opts.profile != "" {
		var err error
		if profile, err = loadProfile(opts.profile); err != nil {
			return false, err
		}
	}

	if opts.magic != 0 {
		profile.Handoff.Magic = uint32(opts.magic)
	}
	if opts.info != 0 {
		profile.Handoff.Info = uint32(opts.info)
	}
	if opts.order != "" {
		order, err := parseOrder(opts.order)
		if err != nil {
			return false, err
		}
		profile.TransitionOrder = order
		if err := profile.validate(); err != nil {
			return false, err
		}
	}

	if opts.image != "" {
		if err := checkImage(opts.image, logger); err != nil {
			return false, err
		}
	}

	var bootLog *logWriter
	if opts.verbose {
		bootLog = &logWriter{logger: logger}
	}

	m, err := simboot.New(profile.Config(), bootLog.writer())
	if err != nil {
		return false, err
	}
	defer m.Close()

	if len(profile.TransitionOrder) != 0 {
		m.SetTransitionOrder(profile.TransitionOrder)
	}

	logger.Info("Booting simulated machine",
		"profile", profile.Name,
		"vendor", profile.CPU.Vendor,
		"magic", hex(profile.Handoff.Magic),
		"info", hex(profile.Handoff.Info),
	)

	bootErr := m.Boot(profile.Handoff.Magic, profile.Handoff.Info)

	width := 0
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}
	renderScreen(os.Stdout, m.Screen(), 80, width)

	if opts.screenshot != "" {
		if err := screenshot(opts.screenshot, m.Console); err != nil {
			return false, err
		}
		logger.Info("Saved console screenshot", "path", opts.screenshot)
	}

	report(logger, m, bootErr)
	return bootErr == nil, nil
}

// report logs the final processor state.
func report(logger *slog.Logger, m *simboot.Machine, bootErr *kernel.Error) {
	attrs := []any{
		"mode", m.CPU.Mode().String(),
		"halted", m.CPU.Halted(),
		"writes", len(m.CPU.Journal()),
	}

	if m.CPU.Violation() != sim.RegNone {
		attrs = append(attrs, "violation", m.CPU.Violation().String())
	}

	if bootErr != nil {
		logger.Error("Boot stage failed", append(attrs, "module", bootErr.Module, "err", bootErr.Message)...)
		return
	}

	physAddr, err := vmm.Translate(m.Memory, uint64(m.CPU.CR3()), vmm.IdentityLimit-1)
	if err == nil {
		attrs = append(attrs, "identity_limit", hex64(physAddr+1))
	}
	logger.Info("Boot stage reached long mode", attrs...)
}

// checkImage locates the Multiboot2 header in a kernel image file.
func checkImage(path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	offset, kerr := multiboot.FindHeader(data)
	if kerr != nil {
		return kerr
	}

	logger.Info("Found Multiboot2 header", "image", path, "offset", offset)
	return nil
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	var opts options
	fs.StringVar(&opts.profile, "profile", "", "YAML file describing the simulated machine")
	fs.UintVar(&opts.magic, "magic", 0, "If set, override the loader magic passed in EAX")
	fs.UintVar(&opts.info, "info", 0, "If set, override the boot information pointer passed in EBX")
	fs.StringVar(&opts.order, "order", "", "Comma separated order of the long mode transition steps (e.g. 0,2,1,3)")
	fs.StringVar(&opts.image, "image", "", "If set, check that this kernel image carries a Multiboot2 header")
	fs.StringVar(&opts.screenshot, "screenshot", "", "If set, save a PNG rendering of the text console to this path")
	fs.BoolVar(&opts.verbose, "v", false, "Log the boot stage output")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Parse flags: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ok, err := run(opts, logger)
	if err != nil {
		log.Fatalf("Run simulation: %v", err)
	}
	if !ok {
		os.Exit(1)
	}
}
