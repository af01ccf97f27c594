package topology

import "github.com/blackmesalabs/sump3/internal/hwdriver"

// ReadPodBulk selects a pod sub-register and bulk-reads n words from
// it, the hardware auto-incrementing the underlying pointer (ROM
// address, RAM address, ...) on successive data-register reads the
// same way it does for any other bulk register.
func ReadPodBulk(d *hwdriver.Driver, hub, pod byte, reg byte, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}

	if err := d.SelectPodRegister(hub, pod, reg); err != nil {
		return nil, err
	}

	return d.BulkRead(hwdriver.OpRdPodRegisterValue, n)
}

// ReadViewROM selects a pod's view-ROM register and bulk-reads its
// entire contents.
func ReadViewROM(d *hwdriver.Driver, hub, pod byte, nWords int) ([]uint32, error) {
	return ReadPodBulk(d, hub, pod, hwdriver.RegViewROM, nWords)
}

// ReadRLERAM downloads a pod's full RLE RAM as decode.DecodeRLEPages
// expects it: one page of 2^addrBits words per 32-bit slice of the
// packed {code, timestamp, data} row, highest-order page first. The
// page select is programmed before each bulk read; the two halves of
// a page must not have unrelated ctrl writes interleaved, which
// ReadPodBulk already guarantees.
func ReadRLERAM(d *hwdriver.Driver, hub, pod byte, addrBits, dataBits, tsBits int) ([][]uint32, error) {
	totalBits := 2 + tsBits + dataBits
	nPages := (totalBits + 31) / 32

	pages := make([][]uint32, 0, nPages)

	for page := 0; page < nPages; page++ {
		if err := d.WriteConfigWord(hwdriver.OpWrRAMPage, uint32(page)); err != nil {
			return nil, err
		}

		words, err := ReadPodBulk(d, hub, pod, hwdriver.RegRLEData, 1<<uint(addrBits))
		if err != nil {
			return nil, err
		}

		pages = append(pages, words)
	}

	return pages, nil
}
