package main

import (
	"fmt"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/gordonklaus/portaudio"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/liuscraft/noizee/internal/logging"
)

func devicesCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "devices",
		Short: "List PortAudio host APIs and output devices",
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			if err := logging.InitFromEnv(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
				os.Exit(1)
			}
			defer logging.Sync()

			if err := portaudio.Initialize(); err != nil {
				logging.Fatalf("Failed to initialize PortAudio: %v", err)
			}
			defer portaudio.Terminate()

			hostAPIs, err := portaudio.HostApis()
			if err != nil {
				logging.Fatalf("Failed to get host APIs: %v", err)
			}
			fmt.Printf("Found %d Host API(s):\n", len(hostAPIs))
			for i, api := range hostAPIs {
				fmt.Printf("  [%d] %s (devices: %d)\n", i, api.Name, len(api.Devices))
			}
			fmt.Println()

			defaultOutput, err := portaudio.DefaultOutputDevice()
			if err != nil {
				fmt.Printf("Default Output Device: (error: %v)\n", err)
			} else {
				fmt.Printf("Default Output Device: %s\n", defaultOutput.Name)
			}
			fmt.Println()

			devices, err := portaudio.Devices()
			if err != nil {
				logging.Fatalf("Failed to get devices: %v", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Device", "Host API", "Out ch", "Rate", "Latency (low/high ms)", ""})
			t.AppendRows(outputDeviceRows(devices, defaultOutput))
			t.Render()

			if defaultOutput != nil && defaultOutput.MaxOutputChannels < 2 {
				fmt.Println()
				fmt.Println("⚠️  The default output is mono; noizee renders stereo and portaudio may refuse the stream.")
			}
		},
	}.ToCobra()
}

// outputDeviceRows lists devices that can play sound, keeping their PortAudio index.
func outputDeviceRows(devices []*portaudio.DeviceInfo, defaultOutput *portaudio.DeviceInfo) []table.Row {
	var rows []table.Row
	for i, dev := range devices {
		if dev.MaxOutputChannels == 0 {
			continue
		}
		marker := ""
		if defaultOutput != nil && dev.Name == defaultOutput.Name {
			marker = "default"
		}
		host := ""
		if dev.HostApi != nil {
			host = dev.HostApi.Name
		}
		rows = append(rows, table.Row{
			i,
			dev.Name,
			host,
			dev.MaxOutputChannels,
			fmt.Sprintf("%.0f Hz", dev.DefaultSampleRate),
			fmt.Sprintf("%.1f / %.1f",
				dev.DefaultLowOutputLatency.Seconds()*1000,
				dev.DefaultHighOutputLatency.Seconds()*1000),
			marker,
		})
	}
	return rows
}
