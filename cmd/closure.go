/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/gobethe/InputParameters"
	"github.com/notargets/gobethe/gf"
	"github.com/notargets/gobethe/selfconsistency"
	"github.com/notargets/gobethe/setups"
	"github.com/notargets/gobethe/storage"
	"github.com/notargets/gobethe/utils"
)

// ClosureCmd represents the closure command
var ClosureCmd = &cobra.Command{
	Use:   "closure",
	Short: "Solve the non-interacting lattice closure of a setup",
	Long: `Solve the non-interacting lattice closure of a setup and print the
orbital densities. With --archive the result is written as loop 0 of a
LevelDB archive that a self-consistency run resumes from.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.InputParametersDMFT
			st *setups.Setup
		)
		icFile, _ := cmd.Flags().GetString("inputConditionsFile")
		archive, _ := cmd.Flags().GetString("archive")
		if ip, err = processInput(icFile); err != nil {
			return
		}
		if st, err = buildSetup(ip); err != nil {
			return
		}
		if err = RunClosure(context.Background(), st, archive); err != nil {
			return
		}
		printDensities(st.GLoc.BlockMesh)
		return
	},
}

func init() {
	rootCmd.AddCommand(ClosureCmd)
	ClosureCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters")
	ClosureCmd.Flags().StringP("archive", "a", "", "LevelDB directory receiving loop 0")
}

// RunClosure solves G_loc and G0 at the setup's current self-energy. With
// an archive path they are saved as the next loop, the impurity quantities
// taken from the lattice.
func RunClosure(ctx context.Context, st *setups.Setup, archivePath string) (err error) {
	var (
		a    *storage.LevelDB
		loop int
	)
	report, err := st.GLoc.Calculate(ctx, st.SE.BlockMesh, st.Mu)
	if err != nil {
		return
	}
	if report.NFlagged() != 0 {
		utils.Logger().Warn("closure flagged points", zap.Error(report.Err()))
	}
	if _, err = st.G0.FromDyson(ctx, st.GLoc.BlockMesh, st.SE.BlockMesh); err != nil {
		return
	}
	if archivePath == "" {
		return
	}
	if a, err = storage.OpenLevelDB(archivePath); err != nil {
		return
	}
	defer a.Close()
	if loop, err = a.CompletedLoops(); err != nil {
		return
	}
	for _, item := range []struct {
		name string
		bm   *gf.BlockMesh
	}{
		{selfconsistency.GLocName, st.GLoc.BlockMesh},
		{selfconsistency.GImpName, st.GLoc.BlockMesh},
		{selfconsistency.SEImpName, st.SE.BlockMesh},
		{selfconsistency.GWeissName, st.G0.BlockMesh},
	} {
		if err = a.Save(item.name, loop, item.bm); err != nil {
			return
		}
	}
	if err = a.Save(storage.MuName, loop, st.Mu); err != nil {
		return
	}
	utils.Logger().Info("archived closure", zap.String("archive", archivePath), zap.Int("loop", loop))
	return
}

func printDensities(g *gf.BlockMesh) {
	for _, orb := range g.Structure().Orbitals() {
		fmt.Printf("n[%s] = %12.8f\n", orb, g.Density(orb))
	}
	fmt.Printf("%12.8f\t= Total density\n", g.TotalDensity())
}
