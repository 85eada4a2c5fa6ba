package controller

import "fmt"

// TriggerKind says what a Trigger asks the controller to do.
type TriggerKind int

const (
	KindScan TriggerKind = iota + 1
	KindUpdate
	KindBrightness
	KindPersistNames
)

func (k TriggerKind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindUpdate:
		return "update"
	case KindBrightness:
		return "brightness"
	case KindPersistNames:
		return "persist_names"
	default:
		return fmt.Sprintf("TriggerKind(%d)", int(k))
	}
}

// Trigger is a message pushed onto the controller queue by watchers and
// the API.
type Trigger struct {
	Kind TriggerKind

	// InstanceName and Brightness are set for KindBrightness.
	InstanceName string
	Brightness   int
}

// Fixed triggers.
var (
	TriggerScan         = Trigger{Kind: KindScan}
	TriggerUpdate       = Trigger{Kind: KindUpdate}
	TriggerPersistNames = Trigger{Kind: KindPersistNames}
)

// BrightnessChanged builds a KindBrightness trigger. instanceName is
// matched by prefix against device instance ids.
func BrightnessChanged(instanceName string, brightness int) Trigger {
	return Trigger{
		Kind:         KindBrightness,
		InstanceName: instanceName,
		Brightness:   brightness,
	}
}
