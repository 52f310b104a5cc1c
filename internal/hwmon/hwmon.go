package hwmon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fwctl/fwctl/internal/platform"
	"github.com/md14454/gosensors"
)

const (
	BusTypeIsa  = 1
	BusTypePci  = 2
	BusTypeAcpi = 5
)

type Chip struct {
	Name     string
	Platform string
	Path     string

	Sensors []Sensor
	Fans    []Fan
}

type Sensor struct {
	Label string
	Index int
	Input string
	Value float64
}

type Fan struct {
	Label string
	Index int
	Input string
	Rpm   float64
}

// libsensors keeps global state
var sensorsMu sync.Mutex

// GetChips returns all chips known to lm-sensors that expose at least one temperature or fan input.
func GetChips() []Chip {
	sensorsMu.Lock()
	defer sensorsMu.Unlock()

	gosensors.Init()
	defer gosensors.Cleanup()
	chips := gosensors.GetDetectedChips()

	var list []Chip
	for _, chip := range chips {
		identifier := computeIdentifier(chip)
		platformName := findPlatform(chip.Path)
		if len(platformName) <= 0 {
			platformName = identifier
		}

		sensorList := getTempSensors(chip)
		fanList := getFans(chip)
		if len(sensorList) <= 0 && len(fanList) <= 0 {
			continue
		}

		list = append(list, Chip{
			Name:     identifier,
			Platform: platformName,
			Path:     chip.Path,
			Sensors:  sensorList,
			Fans:     fanList,
		})
	}
	return list
}

func getTempSensors(chip gosensors.Chip) []Sensor {
	var sensorList []Sensor
	for _, feature := range chip.GetFeatures() {
		if feature.Type != gosensors.FeatureTypeTemp {
			continue
		}
		input, ok := findSubFeature(feature.GetSubFeatures(), gosensors.SubFeatureTypeTempInput)
		if !ok {
			continue
		}
		sensorList = append(sensorList, Sensor{
			Label: getLabel(chip.Path, input.Name),
			Index: len(sensorList) + 1,
			Input: fmt.Sprintf("%s/%s", chip.Path, input.Name),
			Value: input.GetValue(),
		})
	}
	return sensorList
}

func getFans(chip gosensors.Chip) []Fan {
	var fanList []Fan
	for _, feature := range chip.GetFeatures() {
		if feature.Type != gosensors.FeatureTypeFan {
			continue
		}
		input, ok := findSubFeature(feature.GetSubFeatures(), gosensors.SubFeatureTypeFanInput)
		if !ok {
			continue
		}
		fanList = append(fanList, Fan{
			Label: getLabel(chip.Path, input.Name),
			Index: len(fanList) + 1,
			Input: fmt.Sprintf("%s/%s", chip.Path, input.Name),
			Rpm:   input.GetValue(),
		})
	}
	return fanList
}

func findSubFeature(subfeatures []gosensors.SubFeature, input gosensors.SubFeatureType) (gosensors.SubFeature, bool) {
	for _, a := range subfeatures {
		if a.Type == input {
			return a, true
		}
	}
	return gosensors.SubFeature{}, false
}

// getLabel read the label of a in/output of a device
func getLabel(devicePath string, input string) string {
	labelPath := strings.TrimSuffix(devicePath+"/"+input, "input") + "label"

	content, _ := os.ReadFile(labelPath)
	label := strings.TrimSpace(string(content))
	if len(label) <= 0 {
		label = strings.TrimSuffix(input, "_input")
	}
	return label
}

func getDeviceName(devicePath string) string {
	content, _ := os.ReadFile(filepath.Join(devicePath, "name"))
	return strings.TrimSpace(string(content))
}

func computeIdentifier(chip gosensors.Chip) (name string) {
	name = chip.Prefix

	devicePath := chip.Path
	if len(name) <= 0 {
		name = getDeviceName(devicePath)
	}

	if len(name) <= 0 {
		_, name = filepath.Split(devicePath)
	}

	identifier := name
	switch chip.Bus.Type {
	case BusTypeIsa:
		identifier = fmt.Sprintf("%s-isa-%d", identifier, chip.Bus.Nr)
	case BusTypePci:
		identifier = fmt.Sprintf("%s-pci-%d", identifier, chip.Bus.Nr)
	case BusTypeAcpi:
		identifier = fmt.Sprintf("%s-acpi-%d", identifier, chip.Bus.Nr)
	}

	return identifier
}

var platformPattern = regexp.MustCompile(`/platform/([^/]+)/`)

func findPlatform(devicePath string) string {
	match := platformPattern.FindStringSubmatch(devicePath)
	if match == nil {
		return ""
	}
	return match[1]
}

// LmSensors reads temperatures and fan speeds through lm-sensors.
type LmSensors struct {
	chips func() []Chip
}

var _ platform.ThermalSource = (*LmSensors)(nil)

func NewLmSensors() *LmSensors {
	return &LmSensors{chips: GetChips}
}

func (l *LmSensors) ReadThermal(ctx context.Context) (platform.ThermalReading, error) {
	reading := ThermalReadingOf(l.chips())
	if len(reading.Temperatures) <= 0 {
		return platform.ThermalReading{}, fmt.Errorf("lm-sensors: %w: %w", platform.ErrTransientRead, errors.New("no temperature inputs found"))
	}
	return reading, nil
}

// ThermalReadingOf flattens chips into a single reading. Sensors are keyed by their label,
// a label that is used by more than one chip is prefixed with the chip name.
func ThermalReadingOf(chips []Chip) platform.ThermalReading {
	labelCount := map[string]int{}
	for _, chip := range chips {
		for _, sensor := range chip.Sensors {
			labelCount[sensor.Label]++
		}
	}

	reading := platform.ThermalReading{
		Temperatures: map[string]float64{},
		FanRpms:      []float64{},
	}
	for _, chip := range chips {
		for _, sensor := range chip.Sensors {
			key := sensor.Label
			if labelCount[key] > 1 {
				key = fmt.Sprintf("%s/%s", chip.Name, sensor.Label)
			}
			reading.Temperatures[key] = sensor.Value
		}
		for _, fan := range chip.Fans {
			reading.FanRpms = append(reading.FanRpms, fan.Rpm)
		}
	}
	return reading
}
