package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cascoin/cvm/core"
)

func serveCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the CVM node process, exposing Prometheus metrics",
		Run: func(cmd *cobra.Command, args []string) {
			log := logrus.StandardLogger()
			cfg, st, err := openStore()
			if err != nil {
				fatalf("open store: %v", err)
			}
			defer st.Close()

			if cfg.Logging.Level != "" {
				if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
					log.SetLevel(lvl)
				}
			}

			core.RegisterMetrics()
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			log.WithField("addr", metricsAddr).Info("cvmd: serving metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				fatalf("serve: %v", err)
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9440", "address to serve Prometheus metrics on")
	return cmd
}
