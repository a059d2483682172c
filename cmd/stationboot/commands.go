package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/amrbekhit/stationboot"
)

type target struct {
	flash  stationboot.FlashController
	volume stationboot.Volume
	config stationboot.Config
}

func getAddr(arg string) (uint32, error) {
	addr, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, errors.Wrap(err, "invalid address")
	}
	return uint32(addr), nil
}

func getAddrAndLen(args []string) (uint32, int, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("expected: addr len")
	}
	addr, err := getAddr(args[0])
	if err != nil {
		return 0, 0, err
	}
	length, err := strconv.ParseUint(args[1], 0, 31)
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid length")
	}
	return addr, int(length), nil
}

func processReadFlash(t target, args []string) error {
	addr, length, err := getAddrAndLen(args)
	if err != nil {
		return err
	}
	data, err := t.flash.ReadFlash(addr, length)
	if err != nil {
		return err
	}
	fmt.Print(hex.Dump(data))
	return nil
}

func processEraseFlash(t target, args []string) error {
	if len(args) != 1 {
		return errors.New("expected: addr")
	}
	addr, err := getAddr(args[0])
	if err != nil {
		return err
	}
	return errors.Wrap(t.flash.EraseRow(addr), "failed to erase flash")
}

func processWriteFlash(t target, args []string) error {
	if len(args) != 2 {
		return errors.New("expected: addr datafile")
	}
	addr, err := getAddr(args[0])
	if err != nil {
		return err
	}
	data, err := ioutil.ReadFile(args[1])
	if err != nil {
		return errors.Wrap(err, "failed to read data file")
	}
	pageSize := t.config.Layout.PageSize
	for len(data)%pageSize != 0 {
		data = append(data, stationboot.ErasedByte)
	}
	for off := 0; off < len(data); off += pageSize {
		if err := t.flash.WritePage(addr+uint32(off), data[off:off+pageSize]); err != nil {
			return errors.Wrap(err, "failed to write flash")
		}
	}
	return nil
}

func processChecksum(t target, args []string) error {
	addr, length, err := getAddrAndLen(args)
	if err != nil {
		return err
	}
	data, err := t.flash.ReadFlash(addr, length)
	if err != nil {
		return errors.Wrap(err, "failed to calculate checksum")
	}
	fmt.Printf("checksum: %08X\n", stationboot.Checksum(data))
	return nil
}

func processTrigger(t target, args []string) error {
	if err := stationboot.TriggerUpdate(t.volume, t.config.Boot.FlagFile); err != nil {
		return err
	}
	log.Infof("%s added", t.config.Boot.FlagFile)
	return nil
}

func processStage(t target, args []string) error {
	if len(args) != 1 {
		return errors.New("expected: imagefile (.hex or .bin)")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(args[0]), ".hex") {
		n, err := stationboot.StageHexImage(t.volume, t.config.Boot.ImageFile, f, t.config.Layout)
		if err != nil {
			return err
		}
		log.Infof("staged %d bytes from hex file", n)
		return nil
	}
	data, err := ioutil.ReadAll(f)
	if err != nil {
		return err
	}
	if err := stationboot.StageImage(t.volume, t.config.Boot.ImageFile, data); err != nil {
		return err
	}
	log.Infof("staged %d bytes", len(data))
	return nil
}
