package hwmon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwctl/fwctl/internal/platform"
	"github.com/md14454/gosensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIdentifierIsa(t *testing.T) {
	// GIVEN
	c := gosensors.Chip{
		Prefix: "cros_ec",
		Addr:   0x0f1,
		Bus: gosensors.Bus{
			Type: BusTypeIsa,
			Nr:   1,
		},
		Path: "/sys/class/hwmon/hwmon7",
	}
	expected := "cros_ec-isa-1"

	// WHEN
	result := computeIdentifier(c)

	// THEN
	assert.Equal(t, expected, result)
}

func TestComputeIdentifierAcpi(t *testing.T) {
	// GIVEN
	c := gosensors.Chip{
		Prefix: "acpitz",
		Bus: gosensors.Bus{
			Type: BusTypeAcpi,
			Nr:   0,
		},
		Path: "/sys/class/hwmon/hwmon0",
	}
	expected := fmt.Sprintf("%s-acpi-%d", c.Prefix, c.Bus.Nr)

	// WHEN
	result := computeIdentifier(c)

	// THEN
	assert.Equal(t, expected, result)
}

func TestComputeIdentifierFallsBackToDirectory(t *testing.T) {
	// GIVEN
	c := gosensors.Chip{
		Path: filepath.Join(t.TempDir(), "hwmon3"),
	}

	// WHEN
	result := computeIdentifier(c)

	// THEN
	assert.Equal(t, "hwmon3", result)
}

func TestFindPlatform(t *testing.T) {
	// GIVEN
	devicePath := "/sys/devices/pci0000:00/0000:00:0e.0/nvme/nvme0/hwmon3"

	// WHEN
	result := findPlatform(devicePath)

	// THEN
	assert.Equal(t, "", result)
}

func TestFindPlatform_Match(t *testing.T) {
	// GIVEN
	devicePath := "/sys/devices/platform/cros_ec_lpcs.0/cros-ec-dev.1.auto/hwmon/hwmon5"

	// WHEN
	result := findPlatform(devicePath)

	// THEN
	assert.Equal(t, "cros_ec_lpcs.0", result)
}

func TestGetLabel(t *testing.T) {
	// GIVEN
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "temp1_label"), []byte("Tctl\n"), 0644))

	// WHEN
	labeled := getLabel(dir, "temp1_input")
	unlabeled := getLabel(dir, "temp2_input")

	// THEN
	assert.Equal(t, "Tctl", labeled)
	assert.Equal(t, "temp2", unlabeled)
}

func TestThermalReadingOf(t *testing.T) {
	// GIVEN
	chips := []Chip{
		{
			Name:    "k10temp-pci-0",
			Sensors: []Sensor{{Label: "Tctl", Value: 61.5}, {Label: "temp1", Value: 30}},
		},
		{
			Name:    "nvme-pci-1",
			Sensors: []Sensor{{Label: "Composite", Value: 38}, {Label: "temp1", Value: 35}},
			Fans:    []Fan{{Label: "fan1", Rpm: 2400}, {Label: "fan2", Rpm: 0}},
		},
	}

	// WHEN
	reading := ThermalReadingOf(chips)

	// THEN
	assert.Equal(t, map[string]float64{
		"Tctl":                61.5,
		"Composite":           38,
		"k10temp-pci-0/temp1": 30,
		"nvme-pci-1/temp1":    35,
	}, reading.Temperatures)
	assert.Equal(t, []float64{2400, 0}, reading.FanRpms)
}

func TestLmSensors_NoTemperatures(t *testing.T) {
	// GIVEN
	sensors := &LmSensors{chips: func() []Chip { return nil }}

	// WHEN
	_, err := sensors.ReadThermal(context.Background())

	// THEN
	assert.ErrorIs(t, err, platform.ErrTransientRead)
}
