package benchmarks

import (
	"os"
	"path"
	"runtime"
	"runtime/pprof"

	"github.com/rs/zerolog/log"
)

// startProfiling starts the cpu profile if requested, the returned function stops it
// and writes the heap profile
func startProfiling(settings *Flags) func() {
	var cpuFile *os.File
	if settings.CPUProfile != "" {
		cpuProfPath := path.Join(settings.SavePath, settings.CPUProfile)
		log.Info().Str("file", cpuProfPath).Msg("profiling cpu")
		f, err := os.Create(cpuProfPath)
		if err != nil {
			log.Error().Err(err).Msg("could not create CPU profile")
		} else if err := pprof.StartCPUProfile(f); err != nil {
			log.Error().Err(err).Msg("could not start CPU profile")
			f.Close()
		} else {
			cpuFile = f
		}
	}

	return func() {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			cpuFile.Close()
		}
		if settings.MemProfile == "" {
			return
		}
		memProfPath := path.Join(settings.SavePath, settings.MemProfile)
		log.Info().Str("file", memProfPath).Msg("profiling memory")
		f, err := os.Create(memProfPath)
		if err != nil {
			log.Error().Err(err).Msg("could not create memory profile")
			return
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Error().Err(err).Msg("could not write memory profile")
		}
	}
}
