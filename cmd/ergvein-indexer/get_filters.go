// Copyright 2026 Hexresearch
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hexresearch/ergvein-indexer/internal/config"
	"github.com/hexresearch/ergvein-indexer/protocol"
	"github.com/hexresearch/ergvein-indexer/transport"
)

type getFiltersFlags struct {
	flagset *flag.FlagSet
	start   uint64
	amount  uint
}

func newGetFiltersFlags() *getFiltersFlags {
	f := &getFiltersFlags{
		flagset: flag.NewFlagSet("get-filters", flag.ExitOnError),
	}
	f.flagset.Uint64Var(&f.start, "start", 0, "height of the first filter")
	f.flagset.UintVar(&f.amount, "amount", 1, "number of filters to request")
	return f
}

// runGetFilters connects to an indexer as a wallet would and prints the returned filters
func runGetFilters(f *globalFlags, cfg *config.Config) {
	getFiltersFlags := newGetFiltersFlags()
	err := getFiltersFlags.flagset.Parse(f.flagset.Args()[1:])
	if err != nil {
		fmt.Printf("failed to parse subcommand args: %s\n", err)
		os.Exit(1)
	}
	conn, err := net.Dial("tcp", cfg.Listen)
	if err != nil {
		fmt.Printf("Connection failed: %s\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	currency := protocol.CurrencyBtc
	if cfg.Testnet {
		currency = protocol.CurrencyTBtc
	}
	if err := clientHandshake(conn); err != nil {
		fmt.Printf("ERROR: handshake failed: %s\n", err)
		os.Exit(1)
	}
	// #nosec G115
	req := protocol.NewMsgGetFilters(currency, getFiltersFlags.start, uint32(getFiltersFlags.amount))
	if err := transport.WriteMessage(conn, req); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	for {
		msg, err := transport.ReadMessage(conn, transport.DefaultMaxPayloadLength)
		if err != nil {
			fmt.Printf("ERROR: %s\n", err)
			os.Exit(1)
		}
		switch msg := msg.(type) {
		case *protocol.MsgFilters:
			for idx, filter := range msg.Filters {
				fmt.Printf(
					"%d: block %s filter %s\n",
					getFiltersFlags.start+uint64(idx),
					hex.EncodeToString(filter.BlockId),
					hex.EncodeToString(filter.Filter),
				)
			}
			return
		case *protocol.MsgReject:
			fmt.Printf("request rejected: %s (%s)\n", msg.Message, msg.Data)
			os.Exit(1)
		}
	}
}

func clientHandshake(conn net.Conn) error {
	var nonce [protocol.NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	// #nosec G115
	msgVersion := protocol.NewMsgVersion(protocol.CurrentVersion, uint64(time.Now().Unix()), nonce, nil)
	if err := transport.WriteMessage(conn, msgVersion); err != nil {
		return err
	}
	gotVersion, gotAck := false, false
	for !gotVersion || !gotAck {
		msg, err := transport.ReadMessage(conn, transport.DefaultMaxPayloadLength)
		if err != nil {
			return err
		}
		switch msg := msg.(type) {
		case *protocol.MsgVersion:
			if !protocol.Compatible(protocol.CurrentVersion, msg.Version) {
				return fmt.Errorf("incompatible indexer version %s", msg.Version)
			}
			for _, scanBlock := range msg.ScanBlocks {
				fmt.Printf(
					"indexer %s: %s filters up to %d of %d\n",
					msg.Version,
					scanBlock.Currency,
					scanBlock.ScanHeight,
					scanBlock.Height,
				)
			}
			gotVersion = true
			if err := transport.WriteMessage(conn, protocol.NewMsgVersionAck()); err != nil {
				return err
			}
		case *protocol.MsgVersionAck:
			gotAck = true
		default:
			return fmt.Errorf("unexpected %s during handshake", msg.Type())
		}
	}
	return nil
}
