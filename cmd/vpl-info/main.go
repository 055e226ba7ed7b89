// Command vpl-info enumerates the video-processing runtimes visible to
// govpl's dispatcher (pkg/dispatcher): it discovers on-disk candidates,
// registers the bundled software implementation (pkg/implsoftware), and
// prints each visible candidate's capability descriptor.
//
// Cobra/viper wiring is grounded on
// _examples/LanternOps-breeze/agent/cmd/breeze-agent's root-command/
// flag layout; zerolog setup follows
// _examples/helixml-helix/api/cmd/hydra's ParseLevel/ConsoleWriter
// pattern.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vplsoft/govpl/pkg/dispatcher"
	"github.com/vplsoft/govpl/pkg/dispatcher/libsearch"
	"github.com/vplsoft/govpl/pkg/implsoftware"
	"github.com/vplsoft/govpl/pkg/status"
)

var (
	cfgFile        string
	packageDir     string
	logLevel       string
	jsonOutput     bool
	extraPathsFile string
)

// extraPathsConfig is the shape of an optional YAML file naming extra
// search directories, layered on top of ONEVPL_SEARCH_PATH rather than
// replacing it — for deployments that want the override checked into a
// config file instead of an environment variable.
type extraPathsConfig struct {
	SearchPaths []string `yaml:"search_paths"`
}

func loadExtraPaths(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg extraPathsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg.SearchPaths, nil
}

var rootCmd = &cobra.Command{
	Use:   "vpl-info",
	Short: "List video-processing runtimes visible to govpl",
	Long: `vpl-info discovers every runtime the govpl dispatcher can see:
on-disk libraries under ONEVPL_SEARCH_PATH and the package-local
directory, plus the bundled software runtime, and prints each one's
capability descriptor (codec support, max resolution, API version).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listImplementations()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none)")
	rootCmd.PersistentFlags().StringVar(&packageDir, "package-dir", ".", "package-local directory searched for runtimes")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable output")
	rootCmd.PersistentFlags().StringVar(&extraPathsFile, "extra-paths-file", "", "YAML file listing extra search_paths, layered over ONEVPL_SEARCH_PATH")

	viper.BindPFlag("package_dir", rootCmd.PersistentFlags().Lookup("package-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("VPL_INFO")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "vpl-info: failed to read config %s: %v\n", cfgFile, err)
		}
	}
	if v := viper.GetString("package_dir"); v != "" {
		packageDir = v
	}
	if v := viper.GetString("log_level"); v != "" {
		logLevel = v
	}
}

func initLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	cobra.OnInitialize(initConfig, initLogging)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("vpl-info failed")
	}
}

func listImplementations() error {
	log.Debug().Str("package_dir", packageDir).Str("search_path_env", libsearch.SearchPathEnvVar).Msg("starting discovery")

	loader := dispatcher.New(dispatcher.PuregoLoader{}, packageDir)
	loader.SetLogger(log.Logger)
	implsoftware.Register(loader)

	if code := loader.Discover(); code != status.OK {
		return fmt.Errorf("discovery failed: %s", code)
	}

	if extraPathsFile != "" {
		extra, err := loadExtraPaths(extraPathsFile)
		if err != nil {
			return fmt.Errorf("extra paths file: %w", err)
		}
		for _, dir := range extra {
			log.Debug().Str("dir", dir).Msg("scanning extra search path")
			loader.DiscoverExtra(dir)
		}
	}

	n := loader.NumVisibleImplementations()
	log.Info().Int("count", n).Msg("discovered implementations")

	for i := 0; i < n; i++ {
		info, code := loader.EnumCandidateInfo(i)
		if code != status.OK {
			log.Warn().Int("index", i).Str("status", code.String()).Msg("failed to read candidate info")
			continue
		}
		desc, code := loader.EnumImplementations(i)
		if code != status.OK {
			log.Warn().Int("index", i).Str("status", code.String()).Msg("failed to read candidate descriptor")
			continue
		}

		if jsonOutput {
			printJSON(i, info, desc)
		} else {
			printHuman(i, info, desc)
		}
	}

	return status.AsError(loader.Unload())
}

func printHuman(index int, info dispatcher.CandidateInfo, desc *dispatcher.CImplDescription) {
	fmt.Printf("[%d] %s\n", index, info.Path)
	fmt.Printf("    id:       %s\n", info.ID)
	fmt.Printf("    priority: %d\n", info.Priority)
	fmt.Printf("    api:      %d.%d\n", desc.ApiVersionMajor, desc.ApiVersionMinor)
	fmt.Printf("    decoder:  codec=%d max=%dx%d\n", desc.DecoderCodecID, desc.DecoderMaxWidth, desc.DecoderMaxHeight)
	fmt.Printf("    encoder:  codec=%d max=%dx%d\n", desc.EncoderCodecID, desc.EncoderMaxWidth, desc.EncoderMaxHeight)
	fmt.Printf("    vpp:      max=%dx%d\n", desc.VPPMaxWidth, desc.VPPMaxHeight)
}

func printJSON(index int, info dispatcher.CandidateInfo, desc *dispatcher.CImplDescription) {
	fmt.Printf(
		`{"index":%d,"id":%q,"path":%q,"priority":%d,"api_major":%d,"api_minor":%d,"decoder_codec":%d,"decoder_max_width":%d,"decoder_max_height":%d,"encoder_codec":%d,"encoder_max_width":%d,"encoder_max_height":%d,"vpp_max_width":%d,"vpp_max_height":%d}`+"\n",
		index, info.ID, info.Path, info.Priority,
		desc.ApiVersionMajor, desc.ApiVersionMinor,
		desc.DecoderCodecID, desc.DecoderMaxWidth, desc.DecoderMaxHeight,
		desc.EncoderCodecID, desc.EncoderMaxWidth, desc.EncoderMaxHeight,
		desc.VPPMaxWidth, desc.VPPMaxHeight,
	)
}
