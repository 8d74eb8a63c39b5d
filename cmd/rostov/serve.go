package main

import (
	"github.com/spf13/cobra"

	"rostov/internal/apptransfer"
	"rostov/internal/rdtconf"
	"rostov/internal/rlog"
	"rostov/rdt"
)

var log = rlog.New("cmd")

var (
	serveListen  string
	serveDir     string
	serveConfig  string
	serveVariant string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "accept connections and serve upload/download requests from a directory",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:57121", "address to bind")
	serveCmd.Flags().StringVar(&serveDir, "dir", ".", "directory served for upload/download")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "optional YAML config file (rdtconf.Conf)")
	serveCmd.Flags().StringVar(&serveVariant, "variant", "", "reliability variant override: saw or sr")
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := loadConf(serveConfig, serveVariant)
	if err != nil {
		return err
	}

	ln, err := rdt.Listen(serveListen, conf)
	if err != nil {
		return err
	}
	defer ln.Close()
	log.Infof("listening on %s (variant=%s)", ln.Addr(), conf.Variant)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Warnf("accept: %v", err)
			continue
		}
		go serveConn(conn)
	}
}

func serveConn(conn *rdt.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr()
	if err := apptransfer.ServeRequest(conn, serveDir); err != nil {
		log.Warnf("serving %s: %v", peer, err)
		return
	}
	log.Infof("served %s", peer)
}

func loadConf(path, variantOverride string) (*rdtconf.Conf, error) {
	var conf *rdtconf.Conf
	if path != "" {
		c, err := rdtconf.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		conf = c
	} else {
		conf = rdtconf.Default()
	}
	if variantOverride != "" {
		conf.Variant = rdtconf.Variant(variantOverride)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
