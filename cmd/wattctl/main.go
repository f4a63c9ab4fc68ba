package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graywatt/wattcycle-ble/internal/ble"
	"github.com/graywatt/wattcycle-ble/pkg/wattcycle"
	"github.com/graywatt/wattcycle-ble/pkg/wattproto"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: wattctl [-v] <command> [arguments]

commands:
  scan [-t timeout]        scan for Wattcycle/XDZN devices
  read <mac>               read battery data once
  loop <mac> [-i interval] continuously poll battery data
`)
	os.Exit(2)
}

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	var err error
	switch args[0] {
	case "scan":
		err = cmdScan(ctx, args[1:])
	case "read":
		err = cmdRead(ctx, args[1:])
	case "loop":
		err = cmdLoop(ctx, args[1:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wattctl: %v\n", err)
		os.Exit(1)
	}
}

func cmdScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	timeout := fs.Duration("t", 10*time.Second, "scan timeout")
	_ = fs.Parse(args)

	adapter, err := ble.NewAdapter()
	if err != nil {
		return err
	}
	fmt.Printf("Scanning for %v devices (%v)...\n", ble.DeviceNamePrefixes, *timeout)
	devices, err := adapter.Scan(ctx, *timeout)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No Wattcycle/XDZN devices found.")
		return nil
	}
	fmt.Printf("\nFound %d device(s):\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %s  (%s)  RSSI %d\n", d.Name, d.Address, d.RSSI)
	}
	return nil
}

func connect(ctx context.Context, mac string) (*wattcycle.Client, error) {
	adapter, err := ble.NewAdapter()
	if err != nil {
		return nil, err
	}
	dev, err := adapter.Connect(ctx, mac)
	if err != nil {
		return nil, err
	}
	client := wattcycle.New(dev)
	if err := client.Authenticate(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if _, err := client.DetectFrameHead(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not communicate with device: %w", err)
	}
	return client, nil
}

func cmdRead(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	client, err := connect(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer client.Close()

	if pi, err := client.ReadProductInfo(ctx); err == nil {
		fmt.Printf("\n  Firmware:     %s\n", pi.FirmwareVersion)
		fmt.Printf("  Manufacturer: %s\n", pi.ManufacturerName)
		fmt.Printf("  Serial:       %s\n", pi.SerialNumber)
	} else {
		slog.Warn("product info read failed", slog.Any("error", err))
	}

	aq, err := client.ReadAnalogQuantity(ctx)
	if err != nil {
		return err
	}
	printBatteryStatus(aq)

	wi, err := client.ReadWarningInfo(ctx)
	if err != nil {
		slog.Warn("warning info read failed", slog.Any("error", err))
		return nil
	}
	printWarnings(wi)
	return nil
}

func cmdLoop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("loop", flag.ExitOnError)
	interval := fs.Duration("i", 5*time.Second, "poll interval")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	client, err := connect(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer client.Close()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		aq, err := client.ReadAnalogQuantity(ctx)
		if err != nil {
			slog.Warn("read failed", slog.Any("error", err))
		} else {
			printBatteryStatus(aq)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printBatteryStatus(aq wattproto.AnalogQuantity) {
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("  BATTERY STATUS")
	fmt.Println("============================================================")

	fmt.Printf("\n  SOC:                %d%%\n", aq.SOC)
	fmt.Printf("  Current:            %.1f A\n", aq.Current)
	fmt.Printf("  Module Voltage:     %.2f V\n", aq.ModuleVoltage)
	fmt.Printf("  Remaining Capacity: %.1f Ah\n", aq.RemainingCapacity)
	fmt.Printf("  Total Capacity:     %.1f Ah\n", aq.TotalCapacity)
	fmt.Printf("  Design Capacity:    %.1f Ah\n", aq.DesignCapacity)
	fmt.Printf("  Cycle Count:        %d\n", aq.CycleNumber)

	fmt.Printf("\n  Cell Voltages (%d cells):\n", aq.CellCount)
	vmin, vmax := 0.0, 0.0
	for i, v := range aq.CellVoltages {
		fmt.Printf("    Cell %2d: %.3f V\n", i+1, v)
		if i == 0 || v < vmin {
			vmin = v
		}
		if i == 0 || v > vmax {
			vmax = v
		}
	}
	if len(aq.CellVoltages) > 0 {
		fmt.Printf("    Delta:  %.1f mV  (min=%.3f, max=%.3f)\n", (vmax-vmin)*1000, vmin, vmax)
	}

	fmt.Printf("\n  Temperatures (%d sensors):\n", aq.TemperatureCount)
	fmt.Printf("    MOS:    %.1f C\n", aq.MOSTemperature)
	fmt.Printf("    PCB:    %.1f C\n", aq.PCBTemperature)
	for i, t := range aq.CellTemperatures {
		fmt.Printf("    Cell %d: %.1f C\n", i+1, t)
	}

	if ext := aq.Extension; ext != nil {
		fmt.Printf("\n  SOH:                %d%%\n", ext.SOH)
		fmt.Printf("  Cumulative Cap:     %.1f Ah\n", ext.CumulativeCapacity)
		fmt.Printf("  Remaining Time:     %dh %dm\n", ext.RemainingTimeMin/60, ext.RemainingTimeMin%60)
		fmt.Printf("  Balance Current:    %.1f A\n", ext.BalanceCurrent)
	}
	fmt.Println()
}

func printWarnings(wi wattproto.WarningInfo) {
	protections := wi.Protections()
	faults := wi.Faults()
	warnings := wi.Warnings()
	if len(protections) == 0 && len(faults) == 0 && len(warnings) == 0 {
		fmt.Println("  No active warnings or faults.")
		return
	}
	if len(protections) > 0 {
		fmt.Printf("  Protections:  %v\n", protections)
	}
	if len(faults) > 0 {
		fmt.Printf("  Faults:       %v\n", faults)
	}
	if len(warnings) > 0 {
		fmt.Printf("  Warnings:     %v\n", warnings)
	}
}
