package gpiobridge

import (
	udev "github.com/jochenvg/go-udev"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// DiscoverSerialDevice walks udev's tty subsystem for a device whose
// USB vendor/product id match (both lowercase 4-hex-digit strings,
// e.g. "0403"/"6014" for an FTDI FT232H), returning its /dev node.
// Used so a bench harness config can name a board by its USB
// identity rather than a /dev/ttyUSBn path that shifts across
// reboots and hub ports.
func DiscoverSerialDevice(vendorID, productID string) (string, error) {
	u := udev.Udev{}
	enum := u.NewEnumerate()

	if err := enum.AddMatchSubsystem("tty"); err != nil {
		return "", sumperr.Wrap(sumperr.HardwareMissing, err, "gpiobridge: enumerate tty subsystem")
	}

	devices, err := enum.Devices()
	if err != nil {
		return "", sumperr.Wrap(sumperr.HardwareMissing, err, "gpiobridge: list tty devices")
	}

	for _, dev := range devices {
		usbDev := dev.ParentWithSubsystemDevtype("usb", "usb_device")
		if usbDev == nil {
			continue
		}

		if usbDev.PropertyValue("ID_VENDOR_ID") == vendorID && usbDev.PropertyValue("ID_MODEL_ID") == productID {
			if node := dev.Devnode(); node != "" {
				return node, nil
			}
		}
	}

	return "", sumperr.New(sumperr.HardwareMissing, "gpiobridge: no tty device matches usb %s:%s", vendorID, productID)
}
