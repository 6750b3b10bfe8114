//go:build netlib
// +build netlib

package utils

/*
#cgo LDFLAGS: -lopenblas -lgfortran -lm -lpthread
#include <cblas.h>
*/
import "C"

import (
	"fmt"

	"gonum.org/v1/gonum/blas/cblas128"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

func init() {
	cblas128.Use(netblas.Implementation{})
	fmt.Println("Using netlib to accelerate complex BLAS")
}
