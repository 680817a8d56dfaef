package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Int("product", 7, "product id (seed data: 7 = stock 1)")
	firstUser := flag.Int("first-user", 100000, "first synthetic user id")

	// 超卖测试参数：200 个用户并发抢库存为 1 的商品
	nUsers := flag.Int("users", 200, "distinct users")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	stockBefore, err := getStock(client, *baseURL, *productID)
	if err != nil {
		panic(fmt.Sprintf("read stock failed: %v", err))
	}
	fmt.Printf("product=%d stock before=%d\n", *productID, stockBefore)

	// 1) 每个用户先加购。加购只做提前检查，不占库存，所以都能成功。
	fmt.Printf("filling %d carts\n", *nUsers)
	adds := runConcurrent(*nUsers, *concurrency, func(i int) Result {
		return postJSON(client, fmt.Sprintf("%s/api/cart/%d/add", *baseURL, *firstUser+i), map[string]any{
			"product_id": *productID,
			"quantity":   1,
		})
	})
	printSummary("add_to_cart", adds)

	// 2) 不超卖测试：不同 user 并发下单，成功数必须等于下单前库存
	fmt.Printf("\nstart oversell test: users=%d concurrency=%d\n", *nUsers, *concurrency)
	orders := runConcurrent(*nUsers, *concurrency, func(i int) Result {
		return postJSON(client, *baseURL+"/api/orders", map[string]any{
			"user_id":          *firstUser + i,
			"shipping_address": "load test",
		})
	})
	printSummary("create_order", orders)

	created := 0
	for _, r := range orders {
		if r.Err == nil && r.Status == http.StatusCreated {
			created++
		}
	}
	stockAfter, err := getStock(client, *baseURL, *productID)
	if err != nil {
		fmt.Println("stock check err:", err)
	} else {
		fmt.Printf("orders created=%d final stock=%d\n", created, stockAfter)
		if stockAfter < 0 || int64(created) > stockBefore {
			fmt.Println("OVERSOLD!")
		}
	}

	// 3) 限流测试：同一个 user 重复加购（配合较小的 RATE_LIMIT 更容易触发 429）
	fmt.Println("\nstart rate limit test: same user, 50 requests, concurrency 50")
	sameUser := *firstUser + *nUsers + 1
	limited := runConcurrent(50, 50, func(int) Result {
		return postJSON(client, fmt.Sprintf("%s/api/cart/%d/add", *baseURL, sameUser), map[string]any{
			"product_id": *productID,
			"quantity":   1,
		})
	})
	printSummary("rate_limit", limited)
}

func runConcurrent(total, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func postJSON(client *http.Client, url string, body any) Result {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(respBody)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 201, 400, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getStock 读取商品当前库存，用于压测后校验是否出现超卖。
func getStock(client *http.Client, baseURL string, productID int) (int64, error) {
	url := fmt.Sprintf("%s/api/products/%d", baseURL, productID)
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			StockQuantity int64 `json:"stock_quantity"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.StockQuantity, nil
}
